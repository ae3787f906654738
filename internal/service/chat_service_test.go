package service

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noam-katz/lomda-api/internal/dto"
	"github.com/noam-katz/lomda-api/internal/models"
)

type stubMessageRepo struct {
	messages []models.Message
	nextID   uint
}

func (s *stubMessageRepo) Create(_ context.Context, message *models.Message) error {
	s.nextID++
	message.ID = s.nextID
	message.CreatedAt = time.Now()
	s.messages = append(s.messages, *message)
	return nil
}

func (s *stubMessageRepo) ListByDiscussion(_ context.Context, discussionID uint) ([]models.Message, error) {
	out := make([]models.Message, 0)
	for _, message := range s.messages {
		if message.DiscussionID == discussionID {
			out = append(out, message)
		}
	}
	return out, nil
}

func (s *stubMessageRepo) DistinctSenderIDs(_ context.Context, discussionID uint) ([]uint, error) {
	seen := map[uint]struct{}{}
	ids := make([]uint, 0)
	for _, message := range s.messages {
		if message.DiscussionID != discussionID {
			continue
		}
		if _, ok := seen[message.SenderID]; ok {
			continue
		}
		seen[message.SenderID] = struct{}{}
		ids = append(ids, message.SenderID)
	}
	return ids, nil
}

func chatServiceFixture(t *testing.T) (*stubMessageRepo, *stubUserRepo, ChatService, uint, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	repo := &stubMessageRepo{}
	discussions := newStubDiscussionRepo()
	users := newStubUserRepo()

	discussion := models.Discussion{UserID: 2, CourseID: 1, LessonID: 1, Title: "Thread", CreatorName: "Author"}
	require.NoError(t, discussions.Create(context.Background(), &discussion))

	svc := NewChatService(repo, discussions, users, redisClient, "lomda", nil, testValidator(), testLogger())
	return repo, users, svc, discussion.ID, server
}

func TestChatServicePostMessagePersistsAndCaches(t *testing.T) {
	repo, _, svc, discussionID, server := chatServiceFixture(t)

	actor := Actor{ID: 2, Name: "Noa Levi", Role: models.RoleUser}
	response, err := svc.PostMessage(context.Background(), actor, discussionID, dto.MessagePostRequest{Text: "hello room"}, "")
	require.NoError(t, err)
	require.Equal(t, "hello room", response.Text)
	require.Equal(t, models.MessageTypeText, response.Type)
	require.Equal(t, "Noa Levi", response.SenderName)
	require.Len(t, repo.messages, 1)

	cached, err := server.Get("lomda:chat:last:1")
	require.NoError(t, err)
	var last dto.MessageResponse
	require.NoError(t, json.Unmarshal([]byte(cached), &last))
	require.Equal(t, "hello room", last.Text)
	require.Equal(t, discussionID, last.DiscussionID)
}

func TestChatServicePostMessageRejectsEmpty(t *testing.T) {
	_, _, svc, discussionID, _ := chatServiceFixture(t)

	_, err := svc.PostMessage(context.Background(), Actor{ID: 2}, discussionID, dto.MessagePostRequest{Text: "   "}, "")
	require.ErrorIs(t, err, ErrMessageEmpty)

	// Markup-only text sanitizes down to nothing.
	_, err = svc.PostMessage(context.Background(), Actor{ID: 2}, discussionID, dto.MessagePostRequest{Text: "<script>alert(1)</script>"}, "")
	require.ErrorIs(t, err, ErrMessageEmpty)
}

func TestChatServicePostMessageUnknownDiscussion(t *testing.T) {
	_, _, svc, discussionID, _ := chatServiceFixture(t)

	_, err := svc.PostMessage(context.Background(), Actor{ID: 2}, discussionID+100, dto.MessagePostRequest{Text: "hi"}, "")
	require.ErrorIs(t, err, ErrDiscussionNotFound)
}

func TestChatServiceImageUploadForcesType(t *testing.T) {
	repo, _, svc, discussionID, _ := chatServiceFixture(t)

	response, err := svc.PostMessage(context.Background(), Actor{ID: 2}, discussionID, dto.MessagePostRequest{}, "/uploads/photo.png")
	require.NoError(t, err)
	require.Equal(t, models.MessageTypeImage, response.Type)
	require.Equal(t, "/uploads/photo.png", response.ImageURL)
	require.Empty(t, response.Text)
	require.Equal(t, models.MessageTypeImage, repo.messages[0].Type)
}

func TestChatServiceHistoryKeepsOrder(t *testing.T) {
	_, _, svc, discussionID, _ := chatServiceFixture(t)

	for _, text := range []string{"one", "two", "three"} {
		_, err := svc.PostMessage(context.Background(), Actor{ID: 2}, discussionID, dto.MessagePostRequest{Text: text}, "")
		require.NoError(t, err)
	}

	history, err := svc.History(context.Background(), discussionID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, "one", history[0].Text)
	require.Equal(t, "three", history[2].Text)

	_, err = svc.History(context.Background(), discussionID+100)
	require.ErrorIs(t, err, ErrDiscussionNotFound)
}

func TestChatServiceParticipantsIncludeCreatorOnce(t *testing.T) {
	_, users, svc, discussionID, _ := chatServiceFixture(t)

	// The discussion creator (id 2) also chats; they must not appear twice.
	for _, user := range []models.User{
		{Name: "Creator", Email: "creator@example.com", PasswordHash: "x", Role: models.RoleUser},
		{Name: "Guest", Email: "guest@example.com", PasswordHash: "x", Role: models.RoleUser},
	} {
		u := user
		require.NoError(t, users.Register(context.Background(), &u))
	}

	_, err := svc.PostMessage(context.Background(), Actor{ID: 2, Name: "Creator"}, discussionID, dto.MessagePostRequest{Text: "hi"}, "")
	require.NoError(t, err)
	_, err = svc.PostMessage(context.Background(), Actor{ID: 1, Name: "Guest"}, discussionID, dto.MessagePostRequest{Text: "hey"}, "")
	require.NoError(t, err)

	participants, err := svc.Participants(context.Background(), discussionID)
	require.NoError(t, err)
	require.Len(t, participants, 2)
}

func TestChatConnectionLoggerCarriesCorrelation(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	logger := connectionLogger(base, ChatConnectionOptions{
		Actor:         Actor{ID: 4, Name: "Dana"},
		DiscussionID:  9,
		CorrelationID: "corr-abc-123",
	})
	logger.Info().Msg("chat subscriber attached")

	line := buf.String()
	require.Contains(t, line, `"correlation_id":"corr-abc-123"`)
	require.Contains(t, line, `"user_id":4`)
	require.Contains(t, line, `"discussion_id":9`)

	buf.Reset()
	logger = connectionLogger(base, ChatConnectionOptions{Actor: Actor{ID: 4}, DiscussionID: 9})
	logger.Info().Msg("chat subscriber attached")
	require.NotContains(t, buf.String(), "correlation_id")
}

func TestChatServicePostMessagePublishesEvent(t *testing.T) {
	_, _, svc, discussionID, server := chatServiceFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	_, err := svc.PostMessage(context.Background(), Actor{ID: 2}, discussionID, dto.MessagePostRequest{Text: "fan out"}, "")
	require.NoError(t, err)

	// The event lands on the node-shared redis channel.
	require.Eventually(t, func() bool {
		return server.Exists("lomda:chat:last:1")
	}, time.Second, 10*time.Millisecond)
}
