package realtime

import (
	"encoding/json"
	"sync"

	"circle/internal/metrics"

	"github.com/rs/zerolog/log"
)

// Hub 用户 ID -> 连接 ID -> 连接。HTTP 请求并发执行，所有读写都要加锁
type Hub struct {
	mu      sync.RWMutex
	clients map[uint]map[string]*Client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[uint]map[string]*Client)}
}

// Register 把连接挂到用户名下。同一连接重复注册到其他用户时先从旧用户移除
func (h *Hub) Register(userID uint, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.closed {
		return
	}
	if c.userID != 0 {
		if c.userID == userID {
			return
		}
		h.detach(c)
	}

	conns, ok := h.clients[userID]
	if !ok {
		conns = make(map[string]*Client)
		h.clients[userID] = conns
	}
	conns[c.id] = c
	c.userID = userID
	metrics.ConnectionOpened()
}

// Unregister 移除连接并关闭其发送队列，可重复调用
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.userID != 0 {
		h.detach(c)
	}
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (h *Hub) detach(c *Client) {
	if conns, ok := h.clients[c.userID]; ok {
		if _, ok := conns[c.id]; ok {
			delete(conns, c.id)
			metrics.ConnectionClosed()
		}
		if len(conns) == 0 {
			delete(h.clients, c.userID)
		}
	}
	c.userID = 0
}

// Emit 推送给用户的全部连接，返回成功入队的连接数。
// 发送队列已满的连接会被断开，不阻塞调用方
func (h *Hub) Emit(userID uint, ev Event) int {
	msg, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("type", ev.Type).Msg("Failed to encode realtime event")
		return 0
	}

	var slow []*Client
	delivered := 0

	h.mu.RLock()
	for _, c := range h.clients[userID] {
		select {
		case c.send <- msg:
			delivered++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Warn().Uint("user_id", userID).Str("conn", c.id).Msg("Dropping slow realtime client")
		metrics.ClientDropped()
		h.Unregister(c)
	}
	if delivered > 0 {
		metrics.EventDelivered(ev.Type)
	}
	return delivered
}

// sendTo 直接回复某个连接（注册确认、pong、错误）
func (h *Hub) sendTo(c *Client, ev Event) bool {
	msg, err := json.Marshal(ev)
	if err != nil {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (h *Hub) IsOnline(userID uint) bool {
	return h.Connections(userID) > 0
}

// Connections 用户当前的连接数
func (h *Hub) Connections(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Count 在线用户数
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close 关闭全部连接，用于进程退出
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*Client
	for _, conns := range h.clients {
		for _, c := range conns {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range all {
		h.Unregister(c)
	}
}
