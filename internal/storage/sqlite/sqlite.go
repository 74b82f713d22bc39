// Package sqlite provides a SQLite-backed implementation of the
// storage.Storage interface using Go's standard database/sql package.
//
// WHY SQLite?
// ───────────
// SQLite stores everything in a single file on disk. There is no
// network, no separate server process, and no installation beyond the
// driver. Both tables this application needs live in that one file.
//
// The blank import below registers the sqlite3 driver with database/sql.
// The driver's init() function does this automatically when the package
// is loaded — we never call anything from it directly.
package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/manog95/student-portal/internal/config"
	"github.com/manog95/student-portal/internal/storage"
	"github.com/manog95/student-portal/internal/types"

	// Blank import: side-effect only (registers the "sqlite3" driver).
	// Without this the sql.Open("sqlite3", ...) call would fail with
	// "unknown driver".
	_ "github.com/mattn/go-sqlite3"
)

// SQLite is the concrete implementation of storage.Storage.
// It holds a *sql.DB which is a connection pool managed by database/sql.
// A single *sql.DB is safe for concurrent use by multiple goroutines.
type SQLite struct {
	Db *sql.DB
}

// findableStudentFields whitelists the columns FindStudentByField may
// query. The column name is interpolated into the SQL text (placeholders
// only cover values, not identifiers), so it must never come from user
// input unchecked.
var findableStudentFields = map[string]bool{
	"roll_no": true,
	"email":   true,
}

// New opens the SQLite database at the path specified in cfg.StoragePath,
// creates the students and users tables if they do not already exist, and
// returns a ready-to-use *SQLite.
//
// Naming convention: New() acts as a constructor. Go has no constructors,
// so the community convention is a package-level New() function that
// returns an initialised instance (and an error as the second value).
func New(cfg *config.Config) (*SQLite, error) {
	// sql.Open does NOT open a real connection yet — it just validates
	// the driver name and data source name (DSN).
	// The first actual connection happens on the first query.
	db, err := sql.Open("sqlite3", cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: open db: %w", err)
	}

	// CREATE TABLE IF NOT EXISTS is idempotent — safe to run on every
	// startup. If the table already exists nothing happens.
	//
	// roll_no, email, and username carry UNIQUE constraints so that a
	// duplicate which races past the validation layer still cannot be
	// committed.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS students (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			roll_no TEXT    NOT NULL UNIQUE,
			name    TEXT    NOT NULL,
			email   TEXT    NOT NULL UNIQUE,
			course  TEXT    NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: create students table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			username      TEXT    NOT NULL UNIQUE,
			password_hash TEXT    NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: create users table: %w", err)
	}

	return &SQLite{Db: db}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Student records
// ─────────────────────────────────────────────────────────────────────────────

// CreateStudent inserts a new row into the students table.
//
// Prepared statements use placeholders (?). The database driver sends
// the query and the values separately, so the engine treats the values
// as pure data, never as SQL syntax — this is what prevents injection.
func (s *SQLite) CreateStudent(student types.Student) (int64, error) {
	stmt, err := s.Db.Prepare(
		"INSERT INTO students (roll_no, name, email, course) VALUES (?, ?, ?, ?)",
	)
	if err != nil {
		return 0, fmt.Errorf("CreateStudent: prepare: %w", err)
	}
	// defer ensures the statement is closed when this function returns,
	// even if we return early due to an error. Prevents resource leaks.
	defer stmt.Close()

	result, err := stmt.Exec(student.RollNo, student.Name, student.Email, student.Course)
	if err != nil {
		return 0, fmt.Errorf("CreateStudent: exec: %w", err)
	}

	// LastInsertId returns the auto-generated primary key of the new row.
	lastID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("CreateStudent: last insert id: %w", err)
	}

	return lastID, nil
}

// GetStudentByID fetches exactly one student row matched by primary key.
//
// QueryRow executes the query and returns a *Row — a single-row result.
// Scan reads the columns from that row into Go variables IN ORDER, so
// the variable order must match the SELECT column order.
func (s *SQLite) GetStudentByID(id int64) (types.Student, error) {
	var student types.Student

	err := s.Db.QueryRow(
		"SELECT id, roll_no, name, email, course FROM students WHERE id = ? LIMIT 1", id,
	).Scan(&student.ID, &student.RollNo, &student.Name, &student.Email, &student.Course)
	if err != nil {
		if err == sql.ErrNoRows {
			// Wrap the sentinel so callers can errors.Is on storage.ErrNotFound
			// while the message still carries the offending id for the logs.
			return types.Student{}, fmt.Errorf("no student with id %d: %w", id, storage.ErrNotFound)
		}
		return types.Student{}, fmt.Errorf("GetStudentByID: scan: %w", err)
	}

	return student, nil
}

// GetStudents returns all student rows as a slice.
//
// Query (unlike QueryRow) returns *sql.Rows — a cursor over multiple rows.
// We iterate with rows.Next() which advances the cursor and returns false
// when there are no more rows. Always defer rows.Close() to release the
// database connection.
func (s *SQLite) GetStudents() ([]types.Student, error) {
	rows, err := s.Db.Query(
		// Explicitly list columns — never use SELECT * in production code.
		// If a column is added later, SELECT * would break Scan's ordering.
		"SELECT id, roll_no, name, email, course FROM students ORDER BY id",
	)
	if err != nil {
		return nil, fmt.Errorf("GetStudents: query: %w", err)
	}
	defer rows.Close()

	// Pre-allocate an empty (non-nil) slice so "no students" renders as
	// an empty listing rather than tripping over a nil value.
	students := make([]types.Student, 0)

	for rows.Next() {
		var student types.Student
		if err := rows.Scan(
			&student.ID,
			&student.RollNo,
			&student.Name,
			&student.Email,
			&student.Course,
		); err != nil {
			return nil, fmt.Errorf("GetStudents: scan row: %w", err)
		}
		students = append(students, student)
	}

	// rows.Err() captures any error that occurred during iteration.
	// This is separate from Scan errors.
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetStudents: rows iteration: %w", err)
	}

	return students, nil
}

// FindStudentByField looks up a student by one of the unique columns.
// The validation layer calls this to check roll_no/email uniqueness
// before any write is attempted.
func (s *SQLite) FindStudentByField(field, value string) (types.Student, error) {
	if !findableStudentFields[field] {
		return types.Student{}, fmt.Errorf("FindStudentByField: unsupported field %q", field)
	}

	var student types.Student

	query := fmt.Sprintf(
		"SELECT id, roll_no, name, email, course FROM students WHERE %s = ? LIMIT 1", field,
	)
	err := s.Db.QueryRow(query, value).Scan(
		&student.ID, &student.RollNo, &student.Name, &student.Email, &student.Course,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return types.Student{}, fmt.Errorf("no student with %s %q: %w", field, value, storage.ErrNotFound)
		}
		return types.Student{}, fmt.Errorf("FindStudentByField: scan: %w", err)
	}

	return student, nil
}

// UpdateStudentByID replaces a student's data with the provided values.
//
// The UPDATE and the re-SELECT run inside one transaction: if anything
// fails after the write, the deferred Rollback undoes it rather than
// committing a half-updated row. Rollback after a successful Commit is
// a no-op, so the defer is safe either way.
func (s *SQLite) UpdateStudentByID(id int64, student types.Student) (types.Student, error) {
	tx, err := s.Db.Begin()
	if err != nil {
		return types.Student{}, fmt.Errorf("UpdateStudentByID: begin: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		"UPDATE students SET roll_no = ?, name = ?, email = ?, course = ? WHERE id = ?",
		student.RollNo, student.Name, student.Email, student.Course, id,
	)
	if err != nil {
		return types.Student{}, fmt.Errorf("UpdateStudentByID: exec: %w", err)
	}

	// RowsAffected distinguishes "updated" from "no such row" — an UPDATE
	// that matches nothing is not an error at the SQL level.
	rows, err := result.RowsAffected()
	if err != nil {
		return types.Student{}, fmt.Errorf("UpdateStudentByID: rows affected: %w", err)
	}
	if rows == 0 {
		return types.Student{}, fmt.Errorf("no student with id %d: %w", id, storage.ErrNotFound)
	}

	// Re-fetch inside the same transaction so we return exactly what was
	// committed.
	var updated types.Student
	err = tx.QueryRow(
		"SELECT id, roll_no, name, email, course FROM students WHERE id = ? LIMIT 1", id,
	).Scan(&updated.ID, &updated.RollNo, &updated.Name, &updated.Email, &updated.Course)
	if err != nil {
		return types.Student{}, fmt.Errorf("UpdateStudentByID: re-fetch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return types.Student{}, fmt.Errorf("UpdateStudentByID: commit: %w", err)
	}

	return updated, nil
}

// DeleteStudentByID removes a student row by primary key.
// Deleting an id that does not exist returns ErrNotFound and changes
// nothing.
func (s *SQLite) DeleteStudentByID(id int64) error {
	result, err := s.Db.Exec("DELETE FROM students WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("DeleteStudentByID: exec: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("DeleteStudentByID: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("no student with id %d: %w", id, storage.ErrNotFound)
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// User accounts
// ─────────────────────────────────────────────────────────────────────────────

// CreateUser inserts a new account. The password must already be hashed
// by the caller — this layer never sees a plaintext password.
func (s *SQLite) CreateUser(username, passwordHash string) (int64, error) {
	stmt, err := s.Db.Prepare(
		"INSERT INTO users (username, password_hash) VALUES (?, ?)",
	)
	if err != nil {
		return 0, fmt.Errorf("CreateUser: prepare: %w", err)
	}
	defer stmt.Close()

	result, err := stmt.Exec(username, passwordHash)
	if err != nil {
		return 0, fmt.Errorf("CreateUser: exec: %w", err)
	}

	lastID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("CreateUser: last insert id: %w", err)
	}

	return lastID, nil
}

// GetUserByID fetches an account by primary key.
func (s *SQLite) GetUserByID(id int64) (types.User, error) {
	var user types.User

	err := s.Db.QueryRow(
		"SELECT id, username, password_hash FROM users WHERE id = ? LIMIT 1", id,
	).Scan(&user.ID, &user.Username, &user.PasswordHash)
	if err != nil {
		if err == sql.ErrNoRows {
			return types.User{}, fmt.Errorf("no user with id %d: %w", id, storage.ErrNotFound)
		}
		return types.User{}, fmt.Errorf("GetUserByID: scan: %w", err)
	}

	return user, nil
}

// FindUserByUsername fetches an account by its unique username.
// The registration form calls this to reject duplicate usernames and the
// login flow uses it to locate the account to verify against.
func (s *SQLite) FindUserByUsername(username string) (types.User, error) {
	var user types.User

	err := s.Db.QueryRow(
		"SELECT id, username, password_hash FROM users WHERE username = ? LIMIT 1", username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash)
	if err != nil {
		if err == sql.ErrNoRows {
			return types.User{}, fmt.Errorf("no user named %q: %w", username, storage.ErrNotFound)
		}
		return types.User{}, fmt.Errorf("FindUserByUsername: scan: %w", err)
	}

	return user, nil
}
