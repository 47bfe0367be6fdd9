package identity

import "time"

// User is the public profile attached to realtime events and API responses.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Account is the stored user record, including credentials.
// PasswordHash never leaves the store/auth boundary.
type Account struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Profile strips an account down to its shareable identity.
func (a Account) Profile() User {
	return User{ID: a.ID, Name: a.Name}
}
