package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DefaultChannel is the Redis pub/sub channel shared by every API instance.
const DefaultChannel = "matchday:realtime"

type scope string

const (
	scopeMatch scope = "match"
	scopeUser  scope = "user"
	scopeAll   scope = "all"
)

type envelope struct {
	Scope   scope `json:"scope"`
	MatchID uint  `json:"match_id,omitempty"`
	UserID  uint  `json:"user_id,omitempty"`
	Frame   Frame `json:"frame"`
}

// Broker fans events out to websocket sessions. Without Redis it delivers to the local hub
// only; with Redis every instance receives the event through pub/sub and delivers to its own sessions.
type Broker struct {
	hub     *Hub
	rdb     *redis.Client
	channel string
}

func NewBroker(hub *Hub, rdb *redis.Client, channel string) *Broker {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Broker{hub: hub, rdb: rdb, channel: channel}
}

// Publish signals that a match changed. Best-effort.
func (b *Broker) Publish(ctx context.Context, ev Event) {
	env := envelope{Scope: scopeMatch, MatchID: ev.MatchID, Frame: eventFrame(ev)}
	// lobby cần biết match mới và match bị xoá
	if ev.Kind == MatchCreated || ev.Kind == MatchDeleted {
		env.Scope = scopeAll
	}
	b.send(ctx, env)
}

// PushUser sends a named frame with data to one user's session. Best-effort.
func (b *Broker) PushUser(ctx context.Context, userID uint, event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("realtime: encode user frame")
		return
	}
	b.send(ctx, envelope{Scope: scopeUser, UserID: userID, Frame: Frame{Event: event, Data: raw}})
}

// Run consumes the pub/sub channel until ctx is done. Without Redis it only waits for ctx.
func (b *Broker) Run(ctx context.Context) error {
	if b.rdb == nil {
		<-ctx.Done()
		return nil
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("realtime: subscribe %s: %w", b.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Warn().Err(err).Msg("realtime: drop malformed envelope")
				continue
			}
			b.deliver(env)
		}
	}
}

func (b *Broker) send(ctx context.Context, env envelope) {
	if b.rdb == nil {
		b.deliver(env)
		return
	}
	raw, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Msg("realtime: encode envelope")
		return
	}
	if err := b.rdb.Publish(ctx, b.channel, raw).Err(); err != nil {
		// Redis lỗi thì ít nhất socket trên instance này vẫn nhận được
		log.Warn().Err(err).Str("channel", b.channel).Msg("realtime: publish failed, delivering locally")
		b.deliver(env)
	}
}

func (b *Broker) deliver(env envelope) {
	payload, err := json.Marshal(env.Frame)
	if err != nil {
		return
	}
	switch env.Scope {
	case scopeMatch:
		b.hub.Broadcast(env.MatchID, payload)
	case scopeUser:
		b.hub.NotifyUser(env.UserID, payload)
	case scopeAll:
		b.hub.BroadcastAll(payload)
	}
}
