package model

import "time"

// Claims is the verified payload of a session token. Instances only exist
// after signature and expiry checks passed for the current request.
type Claims struct {
	Subject   string    `json:"subject"`
	Role      Role      `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (c *Claims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}
