package identity

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered wallet owner.
type User struct {
	ID           string
	Name         string
	Phone        string
	Role         string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Registration is the data needed to onboard a user.
type Registration struct {
	Name     string
	Phone    string
	Password string
}
