package models

import "time"

// RefreshToken is one issued refresh credential. A token is single use:
// redeeming it deletes the row and mints a replacement.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	Expires   time.Time
	CreatedAt time.Time
}
