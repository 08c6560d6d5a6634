package authapi

import (
	"time"

	"sessiond/cmd/identity"
)

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type userResponse struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       *string    `json:"email"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

type loginResponse struct {
	User      userResponse `json:"user"`
	Success   bool         `json:"success"`
	CSRFToken string       `json:"csrf_token,omitempty"`
}

type detailResponse struct {
	Detail string `json:"detail"`
}

type verifyResponse struct {
	Detail string       `json:"detail"`
	User   userResponse `json:"user"`
}

type csrfResponse struct {
	CSRFToken string `json:"csrf_token"`
}

func toUserResponse(u identity.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		IsActive:    u.Active,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}
