package dto

import (
	"encoding/json"
	"time"

	"github.com/noam-katz/lomda-api/internal/models"
)

// QuizQuestionInput is one quiz entry supplied with a lesson.
type QuizQuestionInput struct {
	Question      string   `json:"question" validate:"required,min=1,max=1000"`
	Options       []string `json:"options" validate:"required,min=2,dive,required"`
	CorrectAnswer int      `json:"correct_answer" validate:"min=0"`
}

// LessonInput is an embedded lesson supplied on course create/update. Lessons
// are replaced wholesale, so the full definition is required each time.
type LessonInput struct {
	Title    string              `json:"title" validate:"required,min=1,max=255"`
	Content  string              `json:"content" validate:"required"`
	VideoURL string              `json:"video_url" validate:"required,url"`
	ImageURL string              `json:"image_url" validate:"omitempty,url"`
	Quiz     []QuizQuestionInput `json:"quiz" validate:"omitempty,dive"`
}

// CourseCreateRequest creates a course together with its lessons.
type CourseCreateRequest struct {
	Title           string        `json:"title" validate:"required,min=1,max=255"`
	Description     string        `json:"description" validate:"required"`
	Category        string        `json:"category" validate:"required,max=128"`
	DifficultyLevel string        `json:"difficulty_level" validate:"required,oneof=Beginner Intermediate Advanced"`
	ImageURL        string        `json:"image_url" validate:"omitempty,url"`
	Lessons         []LessonInput `json:"lessons" validate:"omitempty,dive"`
}

// CourseUpdateRequest partially updates a course; a non-nil Lessons slice
// replaces all existing lessons.
type CourseUpdateRequest struct {
	Title           *string       `json:"title" validate:"omitempty,min=1,max=255"`
	Description     *string       `json:"description" validate:"omitempty"`
	Category        *string       `json:"category" validate:"omitempty,max=128"`
	DifficultyLevel *string       `json:"difficulty_level" validate:"omitempty,oneof=Beginner Intermediate Advanced"`
	ImageURL        *string       `json:"image_url" validate:"omitempty,url"`
	Lessons         []LessonInput `json:"lessons" validate:"omitempty,dive"`
}

// CourseListQuery filters and paginates the course catalogue.
type CourseListQuery struct {
	Instructor      uint   `query:"instructor" validate:"omitempty"`
	Category        string `query:"category" validate:"omitempty,max=128"`
	DifficultyLevel string `query:"difficulty_level" validate:"omitempty,oneof=Beginner Intermediate Advanced"`
	Search          string `query:"search" validate:"omitempty,max=255"`
	Skip            int    `query:"skip" validate:"omitempty,min=0"`
	Limit           int    `query:"limit" validate:"omitempty,min=1,max=100"`
}

// LessonResponse is the serialized representation of a lesson.
type LessonResponse struct {
	ID        uint                `json:"id"`
	CourseID  uint                `json:"course_id"`
	Position  int                 `json:"position"`
	Title     string              `json:"title"`
	Content   string              `json:"content"`
	VideoURL  string              `json:"video_url"`
	ImageURL  string              `json:"image_url,omitempty"`
	Quiz      []QuizQuestionInput `json:"quiz,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

// CourseResponse is the serialized representation of a course with its lessons.
type CourseResponse struct {
	ID              uint             `json:"id"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	Category        string           `json:"category"`
	DifficultyLevel string           `json:"difficulty_level"`
	InstructorID    uint             `json:"instructor_id"`
	Active          bool             `json:"active"`
	ImageURL        string           `json:"image_url"`
	Rating          float64          `json:"rating"`
	Lessons         []LessonResponse `json:"lessons,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// EnrollmentStatusResponse reports whether the caller is enrolled in a course.
type EnrollmentStatusResponse struct {
	Enrolled bool `json:"enrolled"`
}

// LessonRefResponse is an id/title pair used by discussion authoring forms.
type LessonRefResponse struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

// NewLessonResponse converts a model into a DTO.
func NewLessonResponse(lesson models.Lesson) LessonResponse {
	response := LessonResponse{
		ID:        lesson.ID,
		CourseID:  lesson.CourseID,
		Position:  lesson.Position,
		Title:     lesson.Title,
		Content:   lesson.Content,
		VideoURL:  lesson.VideoURL,
		ImageURL:  lesson.ImageURL,
		CreatedAt: lesson.CreatedAt,
	}
	if len(lesson.Quiz) > 0 {
		var quiz []QuizQuestionInput
		if err := json.Unmarshal(lesson.Quiz, &quiz); err == nil {
			response.Quiz = quiz
		}
	}
	return response
}

// NewCourseResponse converts a model into a DTO including lessons when preloaded.
func NewCourseResponse(course models.Course) CourseResponse {
	response := CourseResponse{
		ID:              course.ID,
		Title:           course.Title,
		Description:     course.Description,
		Category:        course.Category,
		DifficultyLevel: course.DifficultyLevel,
		InstructorID:    course.InstructorID,
		Active:          course.Active,
		ImageURL:        course.ImageURL,
		Rating:          course.Rating,
		CreatedAt:       course.CreatedAt,
		UpdatedAt:       course.UpdatedAt,
	}
	if len(course.Lessons) > 0 {
		lessons := make([]LessonResponse, 0, len(course.Lessons))
		for _, lesson := range course.Lessons {
			lessons = append(lessons, NewLessonResponse(lesson))
		}
		response.Lessons = lessons
	}
	return response
}

// NewCourseResponseSlice converts a slice of courses into DTOs.
func NewCourseResponseSlice(courses []models.Course) []CourseResponse {
	out := make([]CourseResponse, 0, len(courses))
	for _, course := range courses {
		out = append(out, NewCourseResponse(course))
	}
	return out
}
