package broker

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Entity-change event names published on the bus.
const (
	EventDiscussionCreated = "discussion.created"
	EventCommentAdded      = "comment.added"
	EventCommentEdited     = "comment.edited"
	EventCommentDeleted    = "comment.deleted"
	EventCommentBlocked    = "comment.blocked"
	EventMessageCreated    = "message.created"
	EventCourseCreated     = "course.created"
	EventCourseUpdated     = "course.updated"
	EventCourseDeleted     = "course.deleted"
)

// Envelope wraps every event published on the bus.
type Envelope struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
	Node    string      `json:"node"`
	SentAt  time.Time   `json:"sent_at"`
}

// Publisher fans out entity-change events to interested listeners. Delivery is
// advisory: listeners use it for UI refresh, never for correctness.
type Publisher interface {
	Publish(ctx context.Context, event string, payload interface{})
}

// Bus publishes events over NATS and, when configured, mirrors them on a redis
// channel. Publish failures are logged and swallowed; they never fail the
// mutation that produced the event.
type Bus struct {
	nats        *nats.Conn
	redis       *redis.Client
	subjectBase string
	channel     string
	nodeID      string
	logger      zerolog.Logger
}

// NewBus constructs an event bus. Both connections are optional; a Bus with
// neither configured is a silent no-op, which keeps handlers free of nil checks.
func NewBus(natsConn *nats.Conn, redisClient *redis.Client, channelBase string, logger zerolog.Logger) *Bus {
	subjectBase := ""
	channel := ""
	if channelBase != "" {
		subjectBase = strings.ReplaceAll(channelBase, ":", ".")
		channel = channelBase + ":events"
	}

	return &Bus{
		nats:        natsConn,
		redis:       redisClient,
		subjectBase: subjectBase,
		channel:     channel,
		nodeID:      uuid.NewString(),
		logger:      logger.With().Str("component", "event_bus").Logger(),
	}
}

// NodeID identifies this process in event envelopes, letting subscribers skip
// events they produced themselves.
func (b *Bus) NodeID() string {
	return b.nodeID
}

// Publish emits one event, best-effort.
func (b *Bus) Publish(ctx context.Context, event string, payload interface{}) {
	envelope := Envelope{
		Event:   event,
		Payload: payload,
		Node:    b.nodeID,
		SentAt:  time.Now().UTC(),
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		b.logger.Warn().Err(err).Str("event", event).Msg("failed to marshal event")
		return
	}

	if b.nats != nil && b.subjectBase != "" {
		if err := b.nats.Publish(b.subjectBase+"."+event, data); err != nil {
			b.logger.Warn().Err(err).Str("event", event).Msg("failed to publish event to nats")
		}
	}

	if b.redis != nil && b.channel != "" {
		if err := b.redis.Publish(ctx, b.channel, data).Err(); err != nil {
			b.logger.Warn().Err(err).Str("event", event).Msg("failed to publish event to redis")
		}
	}
}
