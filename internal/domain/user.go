package domain

import "time"

// User is a person known to the helpdesk; tickets reference users by ID.
type User struct {
	ID        string
	Name      string
	Email     string
	Picture   string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserProfile is the read-only projection attached to dashboard entries.
type UserProfile struct {
	Name    string
	Email   string
	Picture string
}

// Profile projects the user to its public fields.
func (u *User) Profile() UserProfile {
	return UserProfile{Name: u.Name, Email: u.Email, Picture: u.Picture}
}
