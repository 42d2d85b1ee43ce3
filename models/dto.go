package models

type EmailSignInRequest struct {
	Email       string `json:"email" validate:"required,email"`
	CallbackURL string `json:"callback_url" validate:"omitempty,url"`
}

type EmailCallbackRequest struct {
	Email string `json:"email" validate:"required,email"`
	Token string `json:"token" validate:"required"`
}

// OAuthCallbackRequest carries what a provider handshake produced. The
// profile is validated by the identity adapter.
type OAuthCallbackRequest struct {
	Profile NewUserInput  `json:"profile"`
	Account LinkedAccount `json:"account"`
}

type AuthResponse struct {
	SessionToken string       `json:"session_token"`
	AccessToken  string       `json:"access_token"`
	Expires      int64        `json:"expires"`
	User         *AdapterUser `json:"user"`
}

type UpdateProfileRequest struct {
	Name  Field[*string] `json:"name"`
	Image Field[*string] `json:"image"`
}

type SubmitCommentRequest struct {
	Content    string  `json:"content" validate:"required,max=5000"`
	ParentID   *string `json:"parent_id" validate:"omitempty,max=64"`
	GuestName  *string `json:"guest_name" validate:"omitempty,max=100"`
	GuestEmail *string `json:"guest_email" validate:"omitempty,email"`
}

type UpdateCommentStatusRequest struct {
	Status CommentStatus `json:"status" validate:"required,oneof=PENDING APPROVED REJECTED SPAM"`
	Reason *string       `json:"reason" validate:"omitempty,max=1000"`
}

type BulkUserStatusRequest struct {
	UserIDs []string   `json:"user_ids" validate:"required,min=1,max=500,dive,required"`
	Status  UserStatus `json:"status" validate:"required,oneof=ACTIVE INACTIVE PENDING SUSPENDED"`
}

type BulkUserRoleRequest struct {
	UserIDs []string `json:"user_ids" validate:"required,min=1,max=500,dive,required"`
	Role    UserRole `json:"role" validate:"required,oneof=VIEWER CONTRIBUTOR AUTHOR EDITOR ADMIN SUPER_ADMIN"`
}

type BulkUserDeleteRequest struct {
	UserIDs []string `json:"user_ids" validate:"required,min=1,max=500,dive,required"`
}

type BulkFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

type BulkResult struct {
	Updated []string      `json:"updated"`
	Failed  []BulkFailure `json:"failed"`
}
