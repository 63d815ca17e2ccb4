package realtime

// 推送给客户端的事件类型
const (
	EventNotification  = "notification:new"
	EventMessage       = "message:new"
	EventMessageRead   = "message:read"
	EventPostLiked     = "post:liked"
	EventCommentNew    = "comment:new"
	EventFollowRequest = "follow:request"
	EventTyping        = "typing"
	EventRegistered    = "registered"
	EventPong          = "pong"
	EventError         = "error"
)

// 客户端发来的事件类型
const (
	inboundRegister = "register"
	inboundTyping   = "typing"
	inboundPing     = "ping"
)

// Event 统一的推送信封
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

func NewEvent(eventType string, payload any) Event {
	return Event{Type: eventType, Payload: payload}
}

type inbound struct {
	Type           string `json:"type"`
	Token          string `json:"token,omitempty"`
	ConversationID uint   `json:"conversation_id,omitempty"`
}
