package models

import "time"

// Message type tags.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
)

// Message is a chat line inside a discussion's live chat view. Messages are
// append-only: they are never edited or deleted, and ordering is by server
// creation time with the row id breaking ties.
type Message struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	DiscussionID uint      `gorm:"index;not null" json:"discussion_id"`
	SenderID     uint      `gorm:"index;not null" json:"sender_id"`
	Sender       *User     `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Text         string    `gorm:"type:text" json:"text"`
	ImageURL     string    `gorm:"size:512" json:"image_url"`
	Type         string    `gorm:"size:16;not null;default:text" json:"type"`
	CreatedAt    time.Time `json:"created_at"`
}
