// Package model defines the data structures shared across the session module.
package model

import "time"

// User is the identity record the dashboard backend returns once a session
// is authenticated. The field set mirrors the backend's /user/me payload.
//
// WHY UserID int (not *int)?
// The backend omits user_id entirely for an unauthenticated session, so the
// zero value already means "no authenticated user". A pointer would force
// nil checks on every read without adding information. LoggedIn() is the
// one place that interprets the zero value.
type User struct {
	UserID      int       `json:"user_id"`
	Account     string    `json:"account"`
	Name        string    `json:"name"`
	IsActive    bool      `json:"is_active"`
	IsWhitelist bool      `json:"is_whitelist"`
	IsBlacked   bool      `json:"is_blacked"`
	LoginAt     time.Time `json:"login_at"`
	IsAdmin     bool      `json:"is_admin"`
}

// LoggedIn reports whether the record denotes an authenticated user.
// Absence of a user_id is the backend's way of saying "no session".
func (u User) LoggedIn() bool {
	return u.UserID != 0
}

// Clone returns an independent copy of the user record.
//
// The session manager keeps a mutable edit draft alongside the canonical
// user; the two must never alias. User contains only value fields, so a
// struct copy is a deep copy — Clone exists to make that intent explicit
// at every call site that hands out a draft.
func (u User) Clone() User {
	return u
}
