package dto

import (
	"encoding/json"
	"time"

	"github.com/noam-katz/lomda-api/internal/models"
)

// BlockedContentPlaceholder replaces blocked comment content for non-admin viewers.
const BlockedContentPlaceholder = "blocked"

// DiscussionCreateRequest opens a thread on a course+lesson pair. The course
// and lesson are each addressed by exactly one explicit selector: an id or a
// display title, never an ambiguous dual-mode value.
type DiscussionCreateRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=255"`
	CourseID    *uint  `json:"course_id" validate:"required_without=CourseTitle,excluded_with=CourseTitle"`
	CourseTitle string `json:"course_title" validate:"omitempty,max=255"`
	LessonID    *uint  `json:"lesson_id" validate:"required_without=LessonTitle,excluded_with=LessonTitle"`
	LessonTitle string `json:"lesson_title" validate:"omitempty,max=255"`
}

// DiscussionListQuery filters and paginates the discussion listing.
type DiscussionListQuery struct {
	Course uint `query:"course" validate:"omitempty"`
	Lesson uint `query:"lesson" validate:"omitempty"`
	Skip   int  `query:"skip" validate:"omitempty,min=0"`
	Limit  int  `query:"limit" validate:"omitempty,min=1,max=100"`
}

// BlockRequest sets a block flag explicitly. Repeating the same value is a no-op.
type BlockRequest struct {
	Blocked *bool `json:"blocked" validate:"required"`
}

// CommentCreateRequest attaches a rated comment to a discussion, or directly
// to a lesson when LessonID is provided.
type CommentCreateRequest struct {
	Content  string `json:"content" form:"content" validate:"required,min=1"`
	Rating   int    `json:"rating" form:"rating" validate:"required,min=1,max=5"`
	LessonID *uint  `json:"lesson_id" form:"lesson_id" validate:"omitempty"`
}

// CommentUpdateRequest edits a comment's content and rating.
type CommentUpdateRequest struct {
	Content string `json:"content" validate:"required,min=1"`
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
}

// AuthorResponse is the trimmed user view embedded in forum payloads.
type AuthorResponse struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// CommentResponse is the serialized representation of a comment. Blocked
// comments are rendered as a placeholder unless the viewer is an admin.
type CommentResponse struct {
	ID           uint            `json:"id"`
	DiscussionID *uint           `json:"discussion_id,omitempty"`
	LessonID     *uint           `json:"lesson_id,omitempty"`
	Author       *AuthorResponse `json:"author,omitempty"`
	Content      string          `json:"content"`
	Rating       int             `json:"rating"`
	Images       []string        `json:"images,omitempty"`
	Blocked      bool            `json:"blocked"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// DiscussionResponse is the serialized representation of a thread with its
// populated creator, lesson title and responses.
type DiscussionResponse struct {
	ID          uint              `json:"id"`
	Title       string            `json:"title"`
	CourseID    uint              `json:"course_id"`
	LessonID    uint              `json:"lesson_id"`
	LessonTitle string            `json:"lesson_title,omitempty"`
	Creator     *AuthorResponse   `json:"creator,omitempty"`
	CreatorName string            `json:"creator_name"`
	Blocked     bool              `json:"blocked"`
	Responses   []CommentResponse `json:"responses"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// NewCommentResponse converts a model into a DTO, masking blocked content for
// non-admin viewers.
func NewCommentResponse(comment models.Comment, adminViewer bool) CommentResponse {
	response := CommentResponse{
		ID:           comment.ID,
		DiscussionID: comment.DiscussionID,
		LessonID:     comment.LessonID,
		Content:      comment.Content,
		Rating:       comment.Rating,
		Blocked:      comment.Blocked,
		CreatedAt:    comment.CreatedAt,
		UpdatedAt:    comment.UpdatedAt,
	}
	if comment.User != nil {
		response.Author = &AuthorResponse{ID: comment.User.ID, Name: comment.User.Name}
	}
	if len(comment.Images) > 0 {
		var images []string
		if err := json.Unmarshal(comment.Images, &images); err == nil {
			response.Images = images
		}
	}
	if comment.Blocked && !adminViewer {
		response.Content = BlockedContentPlaceholder
		response.Images = nil
	}
	return response
}

// NewCommentResponseSlice converts a slice of comments into DTOs.
func NewCommentResponseSlice(comments []models.Comment, adminViewer bool) []CommentResponse {
	out := make([]CommentResponse, 0, len(comments))
	for _, comment := range comments {
		out = append(out, NewCommentResponse(comment, adminViewer))
	}
	return out
}

// NewDiscussionResponse converts a model into a DTO including whatever
// associations were preloaded.
func NewDiscussionResponse(discussion models.Discussion, adminViewer bool) DiscussionResponse {
	response := DiscussionResponse{
		ID:          discussion.ID,
		Title:       discussion.Title,
		CourseID:    discussion.CourseID,
		LessonID:    discussion.LessonID,
		CreatorName: discussion.CreatorName,
		Blocked:     discussion.Blocked,
		Responses:   NewCommentResponseSlice(discussion.Responses, adminViewer),
		CreatedAt:   discussion.CreatedAt,
		UpdatedAt:   discussion.UpdatedAt,
	}
	if discussion.User != nil {
		response.Creator = &AuthorResponse{
			ID:    discussion.User.ID,
			Name:  discussion.User.Name,
			Email: discussion.User.Email,
		}
	}
	if discussion.Lesson != nil {
		response.LessonTitle = discussion.Lesson.Title
	}
	return response
}

// NewDiscussionResponseSlice converts a slice of threads into DTOs.
func NewDiscussionResponseSlice(discussions []models.Discussion, adminViewer bool) []DiscussionResponse {
	out := make([]DiscussionResponse, 0, len(discussions))
	for _, discussion := range discussions {
		out = append(out, NewDiscussionResponse(discussion, adminViewer))
	}
	return out
}
