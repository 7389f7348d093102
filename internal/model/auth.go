package model

import "time"

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	User      UserResponse `json:"user"`
	ExpiresIn int64        `json:"expiresIn"`
}

type AuthMeResponse struct {
	UserID   int64    `json:"userId"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

type AuthLogoutResponse struct {
	Status string `json:"status"`
}

type UserResponse struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"roles"`
}

// AuthUser - 인증된 요청의 주체 (access token claims에서 복원)
type AuthUser struct {
	ID       int64
	Username string
	Roles    []string
}

type User struct {
	ID                  int64
	Username            string
	Email               *string
	PasswordHash        string
	Roles               []string
	FailedLoginAttempts int
	LockUntil           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (u *User) Summary() UserResponse {
	resp := UserResponse{
		ID:       u.ID,
		Username: u.Username,
		Roles:    u.Roles,
	}
	if u.Email != nil {
		resp.Email = *u.Email
	}
	return resp
}

type RefreshToken struct {
	ID        int64
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	IP        string
	UserAgent string
	CreatedAt time.Time
}
