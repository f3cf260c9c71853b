package model

import "time"

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
	Role    Role   `json:"role,omitempty"`
	ID      string `json:"id,omitempty"`
}

type MeResponse struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}
