package models

import (
	"time"

	"gorm.io/datatypes"
)

// Role values assignable to a user account.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered account: learners, instructors and the single platform admin.
type User struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	Name           string            `gorm:"size:255;not null" json:"name"`
	Email          string            `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash   string            `gorm:"size:255;not null" json:"-"`
	Role           string            `gorm:"size:16;not null;default:user;index" json:"role"`
	Blocked        bool              `gorm:"not null;default:false" json:"blocked"`
	ProfilePicture string            `gorm:"size:512" json:"profile_picture"`
	LessonProgress datatypes.JSONMap `gorm:"type:json" json:"lesson_progress"`
	Enrollments    []Course          `gorm:"many2many:enrollments" json:"enrollments,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}
