package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

const defaultChannel = "circle:events"

// Broker 发布事件给某个用户，多实例部署时经 Redis 转发
type Broker interface {
	Publish(ctx context.Context, userID uint, ev Event) error
}

// LocalBroker 单实例直接投递到本地 Hub
type LocalBroker struct {
	hub *Hub
}

func NewLocalBroker(hub *Hub) *LocalBroker {
	return &LocalBroker{hub: hub}
}

func (b *LocalBroker) Publish(_ context.Context, userID uint, ev Event) error {
	b.hub.Emit(userID, ev)
	return nil
}

type envelope struct {
	UserID uint  `json:"user_id"`
	Event  Event `json:"event"`
}

// RedisBroker 通过 Redis pub/sub 广播，每个实例把消息投递给自己的本地连接
type RedisBroker struct {
	client  *redis.Client
	hub     *Hub
	channel string
}

func NewRedisBroker(redisURL string, hub *Hub) (*RedisBroker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisBroker{client: redis.NewClient(opts), hub: hub, channel: defaultChannel}, nil
}

func (b *RedisBroker) Publish(ctx context.Context, userID uint, ev Event) error {
	payload, err := json.Marshal(envelope{UserID: userID, Event: ev})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Run 订阅频道直到 ctx 结束
func (b *RedisBroker) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	log.Info().Str("channel", b.channel).Msg("Realtime broker subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.deliver(msg.Payload)
		}
	}
}

func (b *RedisBroker) deliver(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		log.Warn().Err(err).Msg("Discarding malformed realtime envelope")
		return
	}
	if env.UserID == 0 || env.Event.Type == "" {
		return
	}
	b.hub.Emit(env.UserID, env.Event)
}

func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}
