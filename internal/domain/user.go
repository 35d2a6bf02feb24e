package domain

import (
	"strings"
	"time"
)

// User is an account in the credential store.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	Age          *int      `json:"age,omitempty"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DisplayName is "first last" when either part is set, otherwise the username.
func (u *User) DisplayName() string {
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return u.Username
}

// UserFilter narrows a user listing. Empty fields do not filter.
type UserFilter struct {
	Username string
	Name     string // first name substring
	Email    string
	Age      *int
	Active   *bool
	Limit    int
	Offset   int
}

// UserUpdate carries a partial update; nil fields keep their value.
type UserUpdate struct {
	Username  *string
	FirstName *string
	LastName  *string
	Email     *string
	Age       *int
	IsActive  *bool
	Password  *string
}
