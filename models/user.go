package models

import "time"

type Role string

const (
	RolePatient      Role = "patient"
	RoleNutritionist Role = "nutritionist"
)

func (r Role) Valid() bool {
	return r == RolePatient || r == RoleNutritionist
}

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Password  string    `json:"password,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	Active    bool      `json:"active"`
}

// Public returns a copy without the password hash, safe to hand to clients.
func (u User) Public() User {
	u.Password = ""
	return u
}
