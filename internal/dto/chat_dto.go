package dto

import (
	"time"

	"github.com/noam-katz/lomda-api/internal/models"
)

// MessagePostRequest posts a chat line into a discussion. Text may be empty
// when the multipart request carries an image; the service enforces that at
// least one of the two is present.
type MessagePostRequest struct {
	Text string `json:"text" form:"text" validate:"omitempty,max=4000"`
	Type string `json:"type" form:"type" validate:"omitempty,oneof=text image"`
}

// MessageResponse is the serialized representation of a chat message.
type MessageResponse struct {
	ID           uint      `json:"id"`
	DiscussionID uint      `json:"discussion_id"`
	SenderID     uint      `json:"sender_id"`
	SenderName   string    `json:"sender_name,omitempty"`
	SenderAvatar string    `json:"sender_avatar,omitempty"`
	Text         string    `json:"text"`
	ImageURL     string    `json:"image_url,omitempty"`
	Type         string    `json:"type"`
	CreatedAt    time.Time `json:"created_at"`
}

// ParticipantResponse identifies one member of a discussion's chat.
type ParticipantResponse struct {
	ID             uint   `json:"id"`
	Name           string `json:"name"`
	ProfilePicture string `json:"profile_picture,omitempty"`
}

// NewMessageResponse converts a model into a DTO.
func NewMessageResponse(message models.Message) MessageResponse {
	response := MessageResponse{
		ID:           message.ID,
		DiscussionID: message.DiscussionID,
		SenderID:     message.SenderID,
		Text:         message.Text,
		ImageURL:     message.ImageURL,
		Type:         message.Type,
		CreatedAt:    message.CreatedAt,
	}
	if message.Sender != nil {
		response.SenderName = message.Sender.Name
		response.SenderAvatar = message.Sender.ProfilePicture
	}
	return response
}

// NewMessageResponseSlice converts a slice of models into DTOs.
func NewMessageResponseSlice(messages []models.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewMessageResponse(message))
	}
	return out
}

// NewParticipantResponseSlice converts users into chat participant DTOs.
func NewParticipantResponseSlice(users []models.User) []ParticipantResponse {
	out := make([]ParticipantResponse, 0, len(users))
	for _, user := range users {
		out = append(out, ParticipantResponse{
			ID:             user.ID,
			Name:           user.Name,
			ProfilePicture: user.ProfilePicture,
		})
	}
	return out
}
