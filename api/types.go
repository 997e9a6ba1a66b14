package api

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TaskDto is the JSON shape of a task on the wire. UserID is always
// filled by the server from the caller's token; a value sent by the
// client is ignored.
type TaskDto struct {
	ID            int       `json:"id"`
	UserID        uuid.UUID `json:"userId"`
	Title         string    `json:"title"`
	IsDone        bool      `json:"isDone"`
	DueDate       *Date     `json:"dueDate"`
	Category      string    `json:"category"`
	EstimateHours *int      `json:"estimateHours"`
}

// TaskRequest is the body of create and update calls. Id and userId
// fields in the body are not decoded: the id comes from the path and the
// owner from the token.
type TaskRequest struct {
	Title         string `json:"title"`
	IsDone        bool   `json:"isDone"`
	DueDate       *Date  `json:"dueDate"`
	Category      string `json:"category"`
	EstimateHours *int   `json:"estimateHours"`
}

// DoneRequest is the body of the done toggle. IsDone is required.
type DoneRequest struct {
	IsDone *bool `json:"isDone"`
}

type AuthRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse carries a token only when the operation succeeded.
type AuthResponse struct {
	Token   string `json:"token,omitempty"`
	Message string `json:"message"`
}

// Claims is the payload of a bearer token. The user id travels in the
// registered "sub" claim.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}
