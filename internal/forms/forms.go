// Package forms is the validation layer. Each HTML form has a struct
// here whose validate:"..." tags declare its rules; a single generic
// Validate function evaluates them and produces per-field, human-readable
// error messages keyed by the form field name (the form:"..." tag).
//
// Uniqueness rules cannot be expressed as struct tags because they need
// the store — those live on the form types as Check* methods and run
// synchronously as part of the same validation pass, before any write.
package forms

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/manog95/student-portal/internal/storage"
	"github.com/manog95/student-portal/internal/types"
)

// validate is the shared validator instance. RegisterTagNameFunc makes
// FieldError.Field() report the form field name ("roll_no") instead of
// the Go field name ("RollNo"), so error maps line up with the HTML.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Errors maps a form field name to the list of messages it failed with.
// An empty map means the submission passed.
type Errors map[string][]string

// Add appends a message to a field's error list.
func (e Errors) Add(field, message string) {
	e[field] = append(e[field], message)
}

// Valid reports whether no field collected an error.
func (e Errors) Valid() bool {
	return len(e) == 0
}

// Validate runs the tag-declared rules of any form struct and returns
// the collected messages. The returned map is never nil, so templates
// can index it without guarding.
func Validate(form any) Errors {
	errs := Errors{}

	err := validate.Struct(form)
	if err == nil {
		return errs
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		// Struct-level failure (bad input type etc.) — not tied to a field.
		errs.Add("form", "The submission could not be processed.")
		return errs
	}

	for _, fe := range fieldErrs {
		errs.Add(fe.Field(), message(fe))
	}

	return errs
}

// message converts one validator.FieldError into plain English.
func message(fe validator.FieldError) string {
	switch fe.ActualTag() {
	case "required":
		return "This field is required."
	case "email":
		return "Must be a valid email address."
	case "min":
		return fmt.Sprintf("Must be at least %s characters long.", fe.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s characters long.", fe.Param())
	case "eqfield":
		return "Passwords do not match."
	default:
		return "This field is invalid."
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Registration
// ─────────────────────────────────────────────────────────────────────────────

// RegisterForm carries a sign-up submission.
type RegisterForm struct {
	Username        string `form:"username" validate:"required,min=4,max=20"`
	Password        string `form:"password" validate:"required,min=6"`
	ConfirmPassword string `form:"confirm_password" validate:"required,eqfield=Password"`
}

// ParseRegisterForm reads a registration submission. The username is
// trimmed; passwords are taken verbatim (leading/trailing spaces may be
// intentional).
func ParseRegisterForm(r *http.Request) RegisterForm {
	return RegisterForm{
		Username:        strings.TrimSpace(r.PostFormValue("username")),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
	}
}

// CheckUsernameTaken rejects a username that already has an account.
// It runs against the store during validation, not after, so a duplicate
// never reaches CreateUser under normal operation. A non-nil return means
// the store itself failed, which the handler surfaces as a server error.
func (f RegisterForm) CheckUsernameTaken(store storage.Storage, errs Errors) error {
	if f.Username == "" {
		return nil // the required rule already fired
	}

	_, err := store.FindUserByUsername(f.Username)
	switch {
	case err == nil:
		errs.Add("username", "That username is already taken. Please choose another.")
	case !errors.Is(err, storage.ErrNotFound):
		return err
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Login
// ─────────────────────────────────────────────────────────────────────────────

// LoginForm carries a login submission. Remember extends the session
// lifetime when ticked.
type LoginForm struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
	Remember bool   `form:"remember"`
}

// ParseLoginForm reads a login submission. Browsers send "on" for a
// ticked checkbox and omit the field entirely otherwise.
func ParseLoginForm(r *http.Request) LoginForm {
	return LoginForm{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
		Remember: r.PostFormValue("remember") != "",
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Student records
// ─────────────────────────────────────────────────────────────────────────────

// StudentForm carries an add-student or update-student submission.
type StudentForm struct {
	RollNo string `form:"roll_no" validate:"required,min=1,max=20"`
	Name   string `form:"name" validate:"required,min=2,max=100"`
	Email  string `form:"email" validate:"required,email"`
	Course string `form:"course" validate:"required,min=2,max=50"`
}

// ParseStudentForm reads a student submission with all values trimmed.
func ParseStudentForm(r *http.Request) StudentForm {
	return StudentForm{
		RollNo: strings.TrimSpace(r.PostFormValue("roll_no")),
		Name:   strings.TrimSpace(r.PostFormValue("name")),
		Email:  strings.TrimSpace(r.PostFormValue("email")),
		Course: strings.TrimSpace(r.PostFormValue("course")),
	}
}

// FromStudent pre-populates a form from an existing record, for the
// update page's initial display.
func FromStudent(s types.Student) StudentForm {
	return StudentForm{RollNo: s.RollNo, Name: s.Name, Email: s.Email, Course: s.Course}
}

// Student converts validated form values into the model the store takes.
func (f StudentForm) Student() types.Student {
	return types.Student{RollNo: f.RollNo, Name: f.Name, Email: f.Email, Course: f.Course}
}

// CheckDuplicates rejects roll numbers and emails already used by a
// DIFFERENT student. selfID is the record being updated (0 on create),
// so a student keeping their own values passes. A non-nil return means
// the store failed.
func (f StudentForm) CheckDuplicates(store storage.Storage, selfID int64, errs Errors) error {
	checks := []struct {
		field   string
		value   string
		message string
	}{
		{"roll_no", f.RollNo, "A student with this roll number already exists."},
		{"email", f.Email, "A student with this email already exists."},
	}

	for _, c := range checks {
		if c.value == "" {
			continue // the required rule already fired
		}

		existing, err := store.FindStudentByField(c.field, c.value)
		switch {
		case err == nil:
			if existing.ID != selfID {
				errs.Add(c.field, c.message)
			}
		case !errors.Is(err, storage.ErrNotFound):
			return err
		}
	}
	return nil
}
