package domain

import "time"

type Role string

const (
	RoleAdmin  Role = "Admin"
	RoleEditor Role = "Editor"
	RoleUser   Role = "User"
)

type UserStatus string

const (
	UserActive   UserStatus = "Active"
	UserInactive UserStatus = "Inactive"
)

// User is the administrative account view of a users document. PasswordHash
// is never serialized.
type User struct {
	ID           ID         `json:"_id"`
	Email        string     `json:"email"`
	Name         string     `json:"name,omitempty"`
	Role         Role       `json:"role"`
	Status       UserStatus `json:"status"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func UserFromDocument(d Document) User {
	u := User{
		ID:           d.ID,
		Email:        d.String("email"),
		Name:         d.String("name"),
		Role:         Role(d.String("role")),
		Status:       UserStatus(d.String("status")),
		PasswordHash: d.String("password"),
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339Nano, d.String("createdAt"))
	u.UpdatedAt, _ = time.Parse(time.RFC3339Nano, d.String("updatedAt"))
	return u
}

// CanEdit reports whether the account may use the admin API.
func (u User) CanEdit() bool {
	return u.Status == UserActive && (u.Role == RoleAdmin || u.Role == RoleEditor)
}

// Blog publication states.
const (
	StatusDraft     = "Draft"
	StatusPublished = "Published"
)
