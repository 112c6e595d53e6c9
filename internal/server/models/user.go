// Package models defines the server-side records persisted in the database
// and the pure rules that govern them.
package models

import "time"

type User struct {
	ID           string
	UserName     string
	Email        string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
}

// UserSummary is a User as listed to administrators, with the number of
// licenses it owns.
type UserSummary struct {
	User
	LicenseCount int
}
