package models

import (
	"time"

	"gorm.io/datatypes"
)

// Discussion is a named thread scoped to one course+lesson pair. The creator's
// display name is denormalized at creation time so listings do not depend on
// later profile edits.
type Discussion struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"index;not null" json:"user_id"`
	User        *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CourseID    uint      `gorm:"index;not null" json:"course_id"`
	LessonID    uint      `gorm:"index;not null" json:"lesson_id"`
	Lesson      *Lesson   `gorm:"foreignKey:LessonID" json:"lesson,omitempty"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	CreatorName string    `gorm:"size:255;not null" json:"creator_name"`
	Blocked     bool      `gorm:"not null;default:false" json:"blocked"`
	Responses   []Comment `gorm:"foreignKey:DiscussionID" json:"responses,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Comment is a rated, blockable reply. It attaches to exactly one target:
// either a discussion (DiscussionID set) or a lesson directly (LessonID set).
// Membership in a discussion's responses is computed from DiscussionID rather
// than kept as an embedded reference list, so a comment can never be orphaned
// from, or duplicated in, a thread.
type Comment struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	UserID       uint           `gorm:"index;not null" json:"user_id"`
	User         *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	DiscussionID *uint          `gorm:"index" json:"discussion_id,omitempty"`
	LessonID     *uint          `gorm:"index" json:"lesson_id,omitempty"`
	Content      string         `gorm:"type:text;not null" json:"content"`
	Rating       int            `gorm:"not null" json:"rating"`
	Images       datatypes.JSON `gorm:"type:json" json:"images"`
	Blocked      bool           `gorm:"not null;default:false" json:"blocked"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
