package models

import (
	"time"

	"gorm.io/datatypes"
)

// DifficultyLevel values accepted on a course.
const (
	DifficultyBeginner     = "Beginner"
	DifficultyIntermediate = "Intermediate"
	DifficultyAdvanced     = "Advanced"
)

// DefaultCourseImageURL is applied when a course is created without an image.
const DefaultCourseImageURL = "https://example.com/default-course-image.jpg"

// Course represents an authored course with its ordered lessons.
type Course struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Title           string    `gorm:"size:255;not null" json:"title"`
	Description     string    `gorm:"type:text;not null" json:"description"`
	Category        string    `gorm:"size:128;index" json:"category"`
	DifficultyLevel string    `gorm:"size:32;not null" json:"difficulty_level"`
	InstructorID    uint      `gorm:"index;not null" json:"instructor_id"`
	Instructor      *User     `gorm:"foreignKey:InstructorID" json:"instructor,omitempty"`
	Lessons         []Lesson  `gorm:"constraint:OnDelete:CASCADE" json:"lessons,omitempty"`
	Active          bool      `gorm:"not null;index" json:"active"`
	ImageURL        string    `gorm:"size:512" json:"image_url"`
	Rating          float64   `gorm:"not null;default:0" json:"rating"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Lesson is a unit of course content. Lessons are replaced wholesale when a
// course update supplies a lesson list; they are never diffed in place.
type Lesson struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CourseID  uint           `gorm:"index;not null" json:"course_id"`
	Position  int            `gorm:"not null;default:0" json:"position"`
	Title     string         `gorm:"size:255;not null" json:"title"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	VideoURL  string         `gorm:"size:512;not null" json:"video_url"`
	ImageURL  string         `gorm:"size:512" json:"image_url"`
	Quiz      datatypes.JSON `gorm:"type:json" json:"quiz"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// QuizQuestion is one entry of a lesson's embedded quiz, stored as JSON.
type QuizQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
}
