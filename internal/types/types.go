// Package types holds all shared data structures (models) used across
// the application. Keeping them in one place prevents import cycles —
// handlers, storage, and the session layer can all import types without
// depending on each other.
package types

// Student represents one student record.
//
// RollNo and Email are unique across all students; the forms layer
// checks this against the store during validation and the SQLite schema
// enforces it with UNIQUE constraints as a backstop.
type Student struct {
	ID     int64
	RollNo string
	Name   string
	Email  string
	Course string
}

// User is an account that can log in and manage student records.
// PasswordHash holds a bcrypt digest — the raw password is never stored.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
}
