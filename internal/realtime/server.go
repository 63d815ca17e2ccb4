package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Authenticator 校验注册消息中的访问令牌
type Authenticator interface {
	Authenticate(token string) (uint, error)
}

// PeerResolver 校验会话参与者并返回对方 ID，用于转发 typing
type PeerResolver interface {
	ConversationPeer(ctx context.Context, conversationID, userID uint) (uint, error)
}

// Server websocket 入口
type Server struct {
	hub      *Hub
	broker   Broker
	auth     Authenticator
	peers    PeerResolver
	upgrader websocket.Upgrader
}

// NewServer 客户端之间转发的事件（typing）经 broker 发出，多实例时也能送达。broker 为 nil 时只投递本地
func NewServer(hub *Hub, broker Broker, auth Authenticator, peers PeerResolver, allowedOrigins []string) *Server {
	if broker == nil {
		broker = NewLocalBroker(hub)
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Server{
		hub:    hub,
		broker: broker,
		auth:   auth,
		peers:  peers,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin]
			},
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已经写过错误响应
		log.Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := newClient(s.hub, conn)
	go c.writePump()
	go s.readPump(c)
}

func (s *Server) readPump(c *Client) {
	defer func() {
		s.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(registerWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("conn", c.id).Msg("Websocket closed unexpectedly")
			}
			return
		}

		var in inbound
		if err := json.Unmarshal(data, &in); err != nil {
			s.hub.sendTo(c, NewEvent(EventError, "invalid message"))
			continue
		}

		if code := s.dispatch(c, in); code != 0 {
			deadline := time.Now().Add(writeWait)
			c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, "unauthorized"), deadline)
			return
		}
		if in.Type == inboundRegister {
			c.conn.SetReadDeadline(time.Now().Add(pongWait))
		}
	}
}

// dispatch 处理一条客户端消息。返回非 0 的关闭码时断开连接
func (s *Server) dispatch(c *Client, in inbound) int {
	switch in.Type {
	case inboundRegister:
		userID, err := s.auth.Authenticate(in.Token)
		if err != nil {
			return websocket.ClosePolicyViolation
		}
		s.hub.Register(userID, c)
		s.hub.sendTo(c, NewEvent(EventRegistered, map[string]any{"user_id": userID, "conn_id": c.id}))

	case inboundTyping:
		userID := c.UserID()
		if userID == 0 {
			s.hub.sendTo(c, NewEvent(EventError, "not registered"))
			return 0
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		peerID, err := s.peers.ConversationPeer(ctx, in.ConversationID, userID)
		if err != nil {
			s.hub.sendTo(c, NewEvent(EventError, "conversation not found"))
			return 0
		}
		ev := NewEvent(EventTyping, map[string]any{
			"conversation_id": in.ConversationID,
			"user_id":         userID,
		})
		if err := s.broker.Publish(ctx, peerID, ev); err != nil {
			log.Warn().Err(err).Uint("user_id", peerID).Msg("Failed to forward typing event")
		}

	case inboundPing:
		s.hub.sendTo(c, NewEvent(EventPong, nil))

	default:
		s.hub.sendTo(c, NewEvent(EventError, "unknown event type"))
	}
	return 0
}
