package request

// UpdateAccountRequest carries a partial update: nil fields stay untouched,
// at least one must be set.
type UpdateAccountRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,min=1"`
	Email    *string `json:"email" validate:"omitempty,email"`
}
