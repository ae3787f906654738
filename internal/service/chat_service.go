package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noam-katz/lomda-api/internal/dto"
	"github.com/noam-katz/lomda-api/internal/models"
	"github.com/noam-katz/lomda-api/internal/observability"
	"github.com/noam-katz/lomda-api/internal/repository"
)

const (
	chatRedisTTL       = 30 * time.Minute
	chatSendBufferSize = 32
)

// ErrMessageEmpty indicates a post carried neither text nor an image.
var ErrMessageEmpty = errors.New("message requires text or an image")

// ErrDiscussionNotFound indicates the chat target does not exist.
var ErrDiscussionNotFound = errors.New("discussion not found")

// ChatConnectionOptions wraps metadata extracted during the HTTP upgrade.
type ChatConnectionOptions struct {
	Actor         Actor
	DiscussionID  uint
	CorrelationID string
	Context       context.Context
}

// ChatService delivers discussion chat: REST posting and history plus
// websocket push to connected subscribers.
type ChatService interface {
	ServeConnection(conn *websocket.Conn, opts ChatConnectionOptions)
	PostMessage(ctx context.Context, actor Actor, discussionID uint, payload dto.MessagePostRequest, imageURL string) (dto.MessageResponse, error)
	History(ctx context.Context, discussionID uint) ([]dto.MessageResponse, error)
	Participants(ctx context.Context, discussionID uint) ([]dto.ParticipantResponse, error)
	Start(ctx context.Context)
}

type chatService struct {
	repo        repository.MessageRepository
	discussions repository.DiscussionRepository
	users       repository.UserRepository
	redis       *redis.Client
	redisStream string
	redisCache  string
	nats        *nats.Conn
	natsSubject string
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
	hub         *chatHub
	nodeID      string
}

// chatHub keeps track of active websocket clients per discussion and handles
// fan-out to them.
type chatHub struct {
	mu    sync.RWMutex
	rooms map[uint]map[*chatClient]struct{}
	log   zerolog.Logger
}

type chatClient struct {
	conn    *websocket.Conn
	send    chan dto.MessageResponse
	options ChatConnectionOptions
	service *chatService
	closed  chan struct{}
	once    sync.Once
	baseCtx context.Context
}

type chatEvent struct {
	Source  string              `json:"source"`
	Message dto.MessageResponse `json:"message"`
	SentAt  time.Time           `json:"sent_at"`
}

// NewChatService creates a discussion chat service instance.
func NewChatService(repo repository.MessageRepository, discussions repository.DiscussionRepository, users repository.UserRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, validate *validator.Validate, logger zerolog.Logger) ChatService {
	sanitizer := bluemonday.UGCPolicy()
	sanitizer.AllowElements("br")

	hub := &chatHub{
		rooms: make(map[uint]map[*chatClient]struct{}),
		log:   logger.With().Str("component", "chat_hub").Logger(),
	}

	streamChannel := ""
	cachePrefix := ""
	natsSubject := ""
	if channelBase != "" {
		streamChannel = channelBase + ":chat"
		cachePrefix = channelBase + ":chat:last"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".chat"
	}

	return &chatService{
		repo:        repo,
		discussions: discussions,
		users:       users,
		redis:       redisClient,
		redisStream: streamChannel,
		redisCache:  cachePrefix,
		nats:        natsConn,
		natsSubject: natsSubject,
		validator:   validate,
		logger:      logger.With().Str("component", "chat_service").Logger(),
		tracer:      otel.Tracer("github.com/noam-katz/lomda-api/internal/service/chat"),
		sanitizer:   sanitizer,
		hub:         hub,
		nodeID:      uuid.NewString(),
	}
}

func (s *chatService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

// ServeConnection pumps new messages for one discussion to the socket until
// it closes. Messages are posted over REST, so the read loop only drains
// control frames and detects disconnects.
func (s *chatService) ServeConnection(conn *websocket.Conn, opts ChatConnectionOptions) {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	logger := connectionLogger(s.logger, opts)

	client := &chatClient{
		conn:    conn,
		send:    make(chan dto.MessageResponse, chatSendBufferSize),
		options: opts,
		service: s,
		closed:  make(chan struct{}),
		baseCtx: baseCtx,
	}

	s.hub.register(client)
	observability.ChatConnectionsTotal().Inc()
	logger.Info().Msg("chat subscriber attached")

	if last := s.fetchLastMessage(baseCtx, opts.DiscussionID); last != nil {
		select {
		case client.send <- *last:
		default:
			logger.Debug().Msg("dropping cached chat message due to slow consumer")
		}
	}

	go client.writer()
	client.reader()
	logger.Info().Msg("chat subscriber detached")
}

// connectionLogger binds the subscriber identity and the upgrade request's
// correlation id to every hub log line for this socket.
func connectionLogger(base zerolog.Logger, opts ChatConnectionOptions) zerolog.Logger {
	builder := base.With().
		Uint("user_id", opts.Actor.ID).
		Uint("discussion_id", opts.DiscussionID)
	if opts.CorrelationID != "" {
		builder = builder.Str("correlation_id", opts.CorrelationID)
	}
	return builder.Logger()
}

// PostMessage persists and fans out a chat line. Posting into a blocked
// discussion is still accepted; blocking only affects forum rendering.
func (s *chatService) PostMessage(ctx context.Context, actor Actor, discussionID uint, payload dto.MessagePostRequest, imageURL string) (dto.MessageResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.MessageResponse{}, err
	}

	if _, err := s.discussions.GetBare(ctx, discussionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MessageResponse{}, ErrDiscussionNotFound
		}
		return dto.MessageResponse{}, err
	}

	text := strings.TrimSpace(s.sanitizer.Sanitize(payload.Text))
	if text == "" && imageURL == "" {
		return dto.MessageResponse{}, ErrMessageEmpty
	}

	messageType := payload.Type
	if messageType == "" {
		messageType = models.MessageTypeText
	}
	if imageURL != "" {
		messageType = models.MessageTypeImage
	}

	attrs := []attribute.KeyValue{
		attribute.Int("chat.discussion_id", int(discussionID)),
		attribute.Int("chat.sender_id", int(actor.ID)),
		attribute.String("chat.type", messageType),
	}

	spanCtx, span := s.tracer.Start(ctx, "chat.broadcast", trace.WithAttributes(attrs...))
	defer span.End()

	model := models.Message{
		DiscussionID: discussionID,
		SenderID:     actor.ID,
		Text:         text,
		ImageURL:     imageURL,
		Type:         messageType,
	}

	if err := s.repo.Create(spanCtx, &model); err != nil {
		span.RecordError(err)
		return dto.MessageResponse{}, err
	}

	response := dto.NewMessageResponse(model)
	response.SenderName = actor.Name

	s.cacheLastMessage(spanCtx, response)
	s.hub.broadcast(discussionID, response)
	if err := s.publish(spanCtx, response); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish chat event")
	}

	observability.ChatMessagesSent().WithLabelValues(messageType).Inc()

	return response, nil
}

func (s *chatService) History(ctx context.Context, discussionID uint) ([]dto.MessageResponse, error) {
	if _, err := s.discussions.GetBare(ctx, discussionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDiscussionNotFound
		}
		return nil, err
	}

	messages, err := s.repo.ListByDiscussion(ctx, discussionID)
	if err != nil {
		return nil, err
	}
	return dto.NewMessageResponseSlice(messages), nil
}

// Participants returns every distinct sender in the discussion's chat plus the
// discussion creator, deduplicated.
func (s *chatService) Participants(ctx context.Context, discussionID uint) ([]dto.ParticipantResponse, error) {
	discussion, err := s.discussions.GetBare(ctx, discussionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDiscussionNotFound
		}
		return nil, err
	}

	senderIDs, err := s.repo.DistinctSenderIDs(ctx, discussionID)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(senderIDs)+1)
	seen := make(map[uint]struct{}, len(senderIDs)+1)
	for _, id := range append(senderIDs, discussion.UserID) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return dto.NewParticipantResponseSlice(users), nil
}

func (s *chatService) cacheLastMessage(ctx context.Context, message dto.MessageResponse) {
	if s.redis == nil || s.redisCache == "" {
		return
	}

	payload, err := json.Marshal(message)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal chat message for cache")
		return
	}

	key := fmt.Sprintf("%s:%d", s.redisCache, message.DiscussionID)
	if err := s.redis.Set(ctx, key, payload, chatRedisTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache chat message")
	}
}

func (s *chatService) fetchLastMessage(ctx context.Context, discussionID uint) *dto.MessageResponse {
	if s.redis == nil || s.redisCache == "" {
		return nil
	}

	key := fmt.Sprintf("%s:%d", s.redisCache, discussionID)
	result, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		return nil
	}

	var message dto.MessageResponse
	if err := json.Unmarshal([]byte(result), &message); err != nil {
		s.logger.Warn().Err(err).Msg("failed to unmarshal cached chat message")
		return nil
	}

	return &message
}

func (s *chatService) publish(ctx context.Context, message dto.MessageResponse) error {
	event := chatEvent{
		Source:  s.nodeID,
		Message: message,
		SentAt:  time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *chatService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("chat redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *chatService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "lomda-chat", func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats chat subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain chat nats subscription")
		}
	}()
}

func (s *chatService) handleEvent(data []byte) {
	var event chatEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid chat event")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	messageType := event.Message.Type
	if messageType == "" {
		messageType = models.MessageTypeText
	}

	observability.ChatMessagesSent().WithLabelValues(messageType).Inc()
	s.hub.broadcast(event.Message.DiscussionID, event.Message)
}

func (h *chatHub) register(client *chatClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := client.options.DiscussionID
	if _, exists := h.rooms[room]; !exists {
		h.rooms[room] = make(map[*chatClient]struct{})
	}
	h.rooms[room][client] = struct{}{}
	h.log.Debug().
		Uint("discussion_id", room).
		Uint("user_id", client.options.Actor.ID).
		Msg("chat client connected")
}

func (h *chatHub) unregister(client *chatClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := client.options.DiscussionID
	if clients, ok := h.rooms[room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
	h.log.Debug().
		Uint("discussion_id", room).
		Uint("user_id", client.options.Actor.ID).
		Msg("chat client disconnected")
}

func (h *chatHub) broadcast(discussionID uint, message dto.MessageResponse) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.rooms[discussionID]
	for client := range clients {
		select {
		case client.send <- message:
		default:
			h.log.Warn().
				Uint("discussion_id", discussionID).
				Uint("user_id", client.options.Actor.ID).
				Msg("dropping chat message for slow client")
		}
	}
}

// reader drains inbound frames so control messages are processed and a closed
// socket is detected promptly. Clients never post through the socket.
func (c *chatClient) reader() {
	defer c.close()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.service.logger.Debug().Err(err).Msg("chat read loop ended")
			return
		}
	}
}

func (c *chatClient) writer() {
	defer c.close()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.service.logger.Debug().Err(err).Msg("chat write loop terminated")
				return
			}
		case <-time.After(30 * time.Second):
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.service.logger.Debug().Err(err).Msg("chat ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *chatClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.service.hub.unregister(c)
		_ = c.conn.Close()
	})
}
