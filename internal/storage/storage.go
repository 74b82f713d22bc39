// Package storage defines the Storage interface — a contract that any
// database backend must satisfy to work with this application.
//
// WHY AN INTERFACE?
// ─────────────────
// Handlers (HTTP layer) should not know or care which database they are
// talking to. By depending only on this interface:
//
//   - Switching databases = implement the interface for the new DB,
//     change one line in main.go. Zero handler changes.
//
//   - Writing tests = pass a fake/mock that satisfies the interface.
//     No real database needed for unit tests.
//
// This is the Dependency Inversion Principle in practice.
package storage

import (
	"errors"

	"github.com/manog95/student-portal/internal/types"
)

// ErrNotFound is the sentinel returned when a lookup matches no row.
// Handlers test for it with errors.Is and map it to the 404 page;
// every other storage error maps to the generic failure page.
var ErrNotFound = errors.New("record not found")

// Storage is the database contract.
// Any concrete type that implements ALL of these methods automatically
// satisfies this interface — Go does this implicitly (no "implements"
// keyword required).
type Storage interface {
	// CreateStudent inserts a new student record and returns the auto-
	// generated primary-key ID. Returns an error on failure (including
	// UNIQUE constraint violations that slipped past validation).
	CreateStudent(student types.Student) (int64, error)

	// GetStudentByID fetches a single student by their primary key.
	// Returns ErrNotFound (wrapped) when the id does not exist.
	GetStudentByID(id int64) (types.Student, error)

	// GetStudents returns every student in the database.
	// Returns an empty slice (not nil) if there are no students.
	GetStudents() ([]types.Student, error)

	// FindStudentByField looks a student up by one of the unique columns
	// ("roll_no" or "email"). Used by the validation layer to enforce
	// uniqueness before a write. Returns ErrNotFound when no row matches.
	FindStudentByField(field, value string) (types.Student, error)

	// UpdateStudentByID replaces the fields of an existing student inside
	// a transaction. Returns the updated record, or ErrNotFound when the
	// id does not exist.
	UpdateStudentByID(id int64, student types.Student) (types.Student, error)

	// DeleteStudentByID removes a student record permanently.
	// Returns ErrNotFound when the id does not exist.
	DeleteStudentByID(id int64) error

	// CreateUser inserts a new account with an already-hashed password
	// and returns the generated ID.
	CreateUser(username, passwordHash string) (int64, error)

	// GetUserByID fetches an account by primary key.
	// Returns ErrNotFound when the id does not exist.
	GetUserByID(id int64) (types.User, error)

	// FindUserByUsername fetches an account by its unique username.
	// Returns ErrNotFound when no account has that username.
	FindUserByUsername(username string) (types.User, error)
}
