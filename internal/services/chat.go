package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"circle/internal/apperr"
	"circle/internal/models"
	"circle/internal/realtime"
	"circle/internal/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxMessageRunes = 2000

// MessageReadPayload message:read 事件内容
type MessageReadPayload struct {
	ConversationID uint      `json:"conversation_id"`
	ReaderID       uint      `json:"reader_id"`
	ReadAt         time.Time `json:"read_at"`
}

type ChatService struct {
	db            *gorm.DB
	notifications *NotificationService
	pub           Publisher
	now           func() time.Time
}

func NewChatService(db *gorm.DB, notifications *NotificationService, pub Publisher) *ChatService {
	return &ChatService{db: db, notifications: notifications, pub: pub, now: time.Now}
}

// Open 找到或创建与对方的会话。私密账号只接受有关注关系的人私信
func (s *ChatService) Open(ctx context.Context, userID uint, username string) (*models.Conversation, error) {
	peer, err := findUserByUsername(ctx, s.db, username)
	if err != nil {
		return nil, err
	}
	if peer.ID == userID {
		return nil, apperr.BadRequest("不能给自己发私信")
	}
	if peer.IsPrivate {
		following, err := isFollowing(ctx, s.db, userID, peer.ID)
		if err != nil {
			return nil, err
		}
		followed, err := isFollowing(ctx, s.db, peer.ID, userID)
		if err != nil {
			return nil, err
		}
		if !following && !followed {
			return nil, apperr.Forbidden("对方是私密账号，需要关注后才能私信")
		}
	}

	a, b := models.OrderedPair(userID, peer.ID)
	conv := models.Conversation{UserAID: a, UserBID: b}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&conv).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Where("user_a_id = ? AND user_b_id = ?", a, b).First(&conv).Error; err != nil {
		return nil, err
	}
	public := peer.Public()
	conv.Peer = &public
	return &conv, nil
}

// List 会话列表，最近有消息的在前，附带对方信息和未读数
func (s *ChatService) List(ctx context.Context, userID uint, page utils.Page) (utils.OffsetPage[models.Conversation], error) {
	var convs []models.Conversation
	err := s.db.WithContext(ctx).
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Order("last_message_at DESC NULLS LAST").Order("id DESC").
		Offset(page.Offset()).Limit(page.Limit + 1).
		Find(&convs).Error
	if err != nil {
		return utils.OffsetPage[models.Conversation]{}, err
	}
	result := utils.NewOffsetPage(convs, page)
	if len(result.Items) == 0 {
		return result, nil
	}

	ids := make([]uint, len(result.Items))
	peerIDs := make([]uint, len(result.Items))
	for i, c := range result.Items {
		ids[i] = c.ID
		peerIDs[i] = c.PeerID(userID)
	}

	var peers []models.User
	if err := s.db.WithContext(ctx).Select(models.PublicColumns).Where("id IN ?", peerIDs).Find(&peers).Error; err != nil {
		return utils.OffsetPage[models.Conversation]{}, err
	}
	byID := make(map[uint]*models.User, len(peers))
	for i := range peers {
		byID[peers[i].ID] = &peers[i]
	}

	var unread []struct {
		ConversationID uint
		Count          int64
	}
	err = s.db.WithContext(ctx).Model(&models.Message{}).
		Select("conversation_id, count(*) AS count").
		Where("conversation_id IN ? AND sender_id <> ? AND read_at IS NULL", ids, userID).
		Group("conversation_id").
		Scan(&unread).Error
	if err != nil {
		return utils.OffsetPage[models.Conversation]{}, err
	}
	counts := make(map[uint]int64, len(unread))
	for _, u := range unread {
		counts[u.ConversationID] = u.Count
	}

	for i := range result.Items {
		c := &result.Items[i]
		c.Peer = byID[c.PeerID(userID)]
		c.UnreadCount = counts[c.ID]
	}
	return result, nil
}

// Messages 会话消息，最新的在前
func (s *ChatService) Messages(ctx context.Context, userID, conversationID uint, cursor string, limit int) (utils.CursorPage[models.Message], error) {
	if _, err := s.conversation(ctx, userID, conversationID); err != nil {
		return utils.CursorPage[models.Message]{}, err
	}

	limit = utils.ClampLimit(limit)
	q := s.db.WithContext(ctx).Model(&models.Message{}).Where("messages.conversation_id = ?", conversationID)
	q, err := applyCursor(q, cursor, "messages")
	if err != nil {
		return utils.CursorPage[models.Message]{}, err
	}

	var msgs []models.Message
	if err := q.Limit(limit + 1).Find(&msgs).Error; err != nil {
		return utils.CursorPage[models.Message]{}, err
	}
	return utils.NewCursorPage(msgs, limit, func(m models.Message) utils.Cursor {
		return utils.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	}), nil
}

// Send 发送消息并推送给双方的所有连接
func (s *ChatService) Send(ctx context.Context, userID, conversationID uint, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.BadRequest("消息不能为空")
	}
	if utf8.RuneCountInString(content) > maxMessageRunes {
		return nil, apperr.BadRequest("消息过长").WithDetails(map[string]any{"content": "最多 2000 字"})
	}

	conv, err := s.conversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	msg := models.Message{ConversationID: conv.ID, SenderID: userID, Content: content}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).Where("id = ?", conv.ID).Updates(map[string]any{
			"last_message":    utils.Excerpt(content, 100),
			"last_message_at": msg.CreatedAt,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	peerID := conv.PeerID(userID)
	ev := realtime.NewEvent(realtime.EventMessage, &msg)
	publish(ctx, s.pub, peerID, ev)
	publish(ctx, s.pub, userID, ev)

	// 同一会话未读的私信通知只保留一条，由部分唯一索引保证
	s.notifications.Deliver(ctx, models.Notification{
		UserID:     peerID,
		ActorID:    userID,
		Type:       models.NotificationTypeMessage,
		EntityType: models.EntityConversation,
		EntityID:   conv.ID,
		Preview:    utils.Excerpt(content, 80),
		Link:       fmt.Sprintf("/messages/%d", conv.ID),
	})
	return &msg, nil
}

// MarkRead 标记对方发来的消息为已读，返回更新条数
func (s *ChatService) MarkRead(ctx context.Context, userID, conversationID uint) (int64, error) {
	conv, err := s.conversation(ctx, userID, conversationID)
	if err != nil {
		return 0, err
	}

	now := s.now()
	res := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND read_at IS NULL", conv.ID, userID).
		UpdateColumn("read_at", now)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, nil
	}

	if err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND type = ? AND entity_type = ? AND entity_id = ?",
			userID, models.NotificationTypeMessage, models.EntityConversation, conv.ID).
		Update("is_read", true).Error; err != nil {
		return 0, err
	}

	publish(ctx, s.pub, conv.PeerID(userID), realtime.NewEvent(realtime.EventMessageRead, MessageReadPayload{
		ConversationID: conv.ID,
		ReaderID:       userID,
		ReadAt:         now,
	}))
	return res.RowsAffected, nil
}

// ConversationPeer 校验 userID 属于该会话并返回对方 ID，供实时通道转发输入状态
func (s *ChatService) ConversationPeer(ctx context.Context, conversationID, userID uint) (uint, error) {
	conv, err := s.conversation(ctx, userID, conversationID)
	if err != nil {
		return 0, err
	}
	return conv.PeerID(userID), nil
}

// conversation 非参与者一律 404，不暴露会话是否存在
func (s *ChatService) conversation(ctx context.Context, userID, conversationID uint) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.db.WithContext(ctx).First(&conv, conversationID).Error; err != nil {
		return nil, notFound(err, "会话不存在")
	}
	if !conv.HasParticipant(userID) {
		return nil, apperr.NotFound("会话不存在")
	}
	return &conv, nil
}
