package httpapi

import (
	"time"

	taskAuth "github.com/MrEthical07/taskAuth"
	"github.com/MrEthical07/taskAuth/tasks"
)

type signUpRequest struct {
	Username string `json:"username" validate:"required,min=5,max=30"`
	Email    string `json:"email" validate:"required,min=5,max=255,email"`
	Password string `json:"password" validate:"required,min=1,max=72"`
}

type signInRequest struct {
	Email    string `json:"email" validate:"required,min=5,max=255,email"`
	Password string `json:"password" validate:"required,min=1,max=72"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	ExpiresIn int64     `json:"expires_in"`
}

func tokenDTO(t *taskAuth.Token) tokenResponse {
	return tokenResponse{
		Token:     t.AccessToken,
		TokenType: t.TokenType,
		ExpiresAt: t.ExpiresAt,
		ExpiresIn: int64(t.ExpiresIn / time.Second),
	}
}

type updateUserRequest struct {
	Email   string `json:"email" validate:"required,min=5,max=255,email"`
	Version int64  `json:"version" validate:"min=0"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required,max=72"`
	NewPassword     string `json:"new_password" validate:"required,min=1,max=72"`
}

type userResponse struct {
	ID        int64          `json:"id"`
	Username  string         `json:"username"`
	Email     string         `json:"email"`
	Role      string         `json:"role"`
	Version   int64          `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Tasks     []taskResponse `json:"tasks,omitempty"`
}

func userDTO(p taskAuth.Profile, authored []tasks.Task) userResponse {
	out := userResponse{
		ID:        p.ID,
		Username:  p.Username,
		Email:     p.Email,
		Role:      string(p.Role),
		Version:   p.Version,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if len(authored) > 0 {
		out.Tasks = taskDTOs(authored)
	}
	return out
}

type createTaskRequest struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"max=4000"`
	Priority    string `json:"priority" validate:"omitempty,oneof=CRITICAL HIGH MEDIUM LOW"`
	Status      string `json:"status" validate:"omitempty,oneof=NOT_LAUNCH IN_PROCESS DONE"`
}

type editTaskRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,max=4000"`
	Priority    *string `json:"priority" validate:"omitempty,oneof=CRITICAL HIGH MEDIUM LOW"`
	Version     int64   `json:"version" validate:"min=0"`
}

type commentRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
	// Username is accepted for compatibility and ignored; the author is the
	// caller.
	Username string `json:"username,omitempty"`
}

type commentResponse struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	Text      string    `json:"text"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type taskResponse struct {
	ID          int64             `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Status      string            `json:"status"`
	Priority    string            `json:"priority"`
	Author      string            `json:"author"`
	Executors   []string          `json:"executors"`
	Comments    []commentResponse `json:"comments"`
	Version     int64             `json:"version"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func taskDTO(t tasks.Task) taskResponse {
	out := taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		Author:      t.Author.Username,
		Executors:   make([]string, 0, len(t.Executors)),
		Comments:    make([]commentResponse, 0, len(t.Comments)),
		Version:     t.Version,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	for _, m := range t.Executors {
		out.Executors = append(out.Executors, m.Username)
	}
	for _, c := range t.Comments {
		out.Comments = append(out.Comments, commentResponse{
			ID:        c.ID,
			TaskID:    c.TaskID,
			Text:      c.Text,
			Username:  c.Author.Username,
			CreatedAt: c.CreatedAt,
		})
	}
	return out
}

func taskDTOs(ts []tasks.Task) []taskResponse {
	out := make([]taskResponse, 0, len(ts))
	for _, t := range ts {
		out = append(out, taskDTO(t))
	}
	return out
}
