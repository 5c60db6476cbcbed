package users

import "time"

type MeResponse struct {
	User          UserDTO     `json:"user"`
	Subscriptions OverviewDTO `json:"subscriptions"`
}

/* ---------- USER ---------- */

type UserDTO struct {
	ID           uint      `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	AuthProvider string    `json:"auth_provider"`
	HasPassword  bool      `json:"has_password"`
	IsVerified   bool      `json:"is_verified"`
	CreatedAt    time.Time `json:"created_at"`
}

/* ---------- SUBSCRIPTIONS ---------- */

type OverviewDTO struct {
	Total  int64 `json:"total"`
	Active int64 `json:"active"`
}
