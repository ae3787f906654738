package dto

// ProfileUpdateRequest updates the caller's own profile fields.
type ProfileUpdateRequest struct {
	Name           *string `json:"name" validate:"omitempty,min=3,max=30"`
	Email          *string `json:"email" validate:"omitempty,email"`
	ProfilePicture *string `json:"profile_picture" validate:"omitempty,max=512"`
}

// UserBlockRequest sets the block flag on an account. The pointer keeps
// "blocked": false distinguishable from a missing field.
type UserBlockRequest struct {
	Blocked *bool `json:"blocked" validate:"required"`
}

// AdminUserListQuery paginates the admin user listing.
type AdminUserListQuery struct {
	Skip  int `query:"skip" validate:"omitempty,min=0"`
	Limit int `query:"limit" validate:"omitempty,min=1,max=100"`
}
