package domain

import "time"

// User is the account row owned by the users service.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u User) Snapshot() UserSnapshot {
	return UserSnapshot{ID: u.ID, Name: u.Name, Email: u.Email, Active: u.Active}
}
