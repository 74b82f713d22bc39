package router

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/manog95/student-portal/internal/auth"
	"github.com/manog95/student-portal/internal/config"
	"github.com/manog95/student-portal/internal/storage"
	"github.com/manog95/student-portal/internal/storage/sqlite"
	"github.com/manog95/student-portal/internal/types"
	"github.com/manog95/student-portal/internal/utils/render"
)

// newTestApp boots the complete application — real SQLite store, real
// session registry, real templates — behind an httptest server. Tests
// drive it exactly the way a browser would.
func newTestApp(t *testing.T) (*httptest.Server, storage.Storage) {
	t.Helper()

	store, err := sqlite.New(&config.Config{
		StoragePath: filepath.Join(t.TempDir(), "app.db"),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { store.Db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	view, err := render.New(logger)
	if err != nil {
		t.Fatalf("failed to parse templates: %v", err)
	}

	sessions := auth.NewSessions(time.Hour, 24*time.Hour)

	// bcrypt.MinCost keeps login/registration tests fast.
	ts := httptest.NewServer(New(store, sessions, view, logger, bcrypt.MinCost))
	t.Cleanup(ts.Close)

	return ts, store
}

// newClient returns a client with a cookie jar, so sessions persist
// across requests the way they do in a browser.
func newClient(t *testing.T) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("failed to create cookie jar: %v", err)
	}
	return &http.Client{Jar: jar}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(body)
}

var csrfPattern = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

// fetchCSRF loads a page and extracts the CSRF token from its form,
// the same way a browser submission would carry it back.
func fetchCSRF(t *testing.T, client *http.Client, pageURL string) string {
	t.Helper()

	resp, err := client.Get(pageURL)
	if err != nil {
		t.Fatalf("failed to fetch %s: %v", pageURL, err)
	}
	body := readBody(t, resp)

	match := csrfPattern.FindStringSubmatch(body)
	if match == nil {
		t.Fatalf("no csrf token found at %s", pageURL)
	}
	return match[1]
}

func registerUser(t *testing.T, client *http.Client, baseURL, username, password string) *http.Response {
	t.Helper()

	token := fetchCSRF(t, client, baseURL+"/register")
	resp, err := client.PostForm(baseURL+"/register", url.Values{
		"csrf_token":       {token},
		"username":         {username},
		"password":         {password},
		"confirm_password": {password},
	})
	if err != nil {
		t.Fatalf("failed to post registration: %v", err)
	}
	return resp
}

func loginUser(t *testing.T, client *http.Client, baseURL, username, password string) *http.Response {
	t.Helper()

	token := fetchCSRF(t, client, baseURL+"/login")
	resp, err := client.PostForm(baseURL+"/login", url.Values{
		"csrf_token": {token},
		"username":   {username},
		"password":   {password},
	})
	if err != nil {
		t.Fatalf("failed to post login: %v", err)
	}
	return resp
}

// signUpAndLogin is the common preamble for the CRUD tests.
func signUpAndLogin(t *testing.T, client *http.Client, baseURL string) {
	t.Helper()

	readBody(t, registerUser(t, client, baseURL, "alice", "secret1"))
	resp := loginUser(t, client, baseURL, "alice", "secret1")
	if got := resp.Request.URL.Path; got != "/" {
		t.Fatalf("expected login to land on the dashboard, got %s", got)
	}
	readBody(t, resp)
}

func addStudent(t *testing.T, client *http.Client, baseURL string, s types.Student) *http.Response {
	t.Helper()

	token := fetchCSRF(t, client, baseURL+"/")
	resp, err := client.PostForm(baseURL+"/", url.Values{
		"csrf_token": {token},
		"roll_no":    {s.RollNo},
		"name":       {s.Name},
		"email":      {s.Email},
		"course":     {s.Course},
	})
	if err != nil {
		t.Fatalf("failed to post student: %v", err)
	}
	return resp
}

func TestRegistrationCreatesHashedUser(t *testing.T) {
	ts, store := newTestApp(t)
	client := newClient(t)

	resp := registerUser(t, client, ts.URL, "alice", "secret1")
	if got := resp.Request.URL.Path; got != "/login" {
		t.Errorf("expected redirect to /login, landed on %s", got)
	}
	body := readBody(t, resp)
	if !strings.Contains(body, "account has been created") {
		t.Error("expected the success flash on the login page")
	}

	user, err := store.FindUserByUsername("alice")
	if err != nil {
		t.Fatalf("expected a user row: %v", err)
	}
	if user.PasswordHash == "secret1" {
		t.Error("stored credential must not be the plaintext password")
	}
	if !auth.CheckPassword(user.PasswordHash, "secret1") {
		t.Error("stored hash should verify the original password")
	}
}

func TestRegistrationRejectsDuplicateUsername(t *testing.T) {
	ts, store := newTestApp(t)

	readBody(t, registerUser(t, newClient(t), ts.URL, "alice", "secret1"))

	first, err := store.FindUserByUsername("alice")
	if err != nil {
		t.Fatalf("expected the first user row: %v", err)
	}

	resp := registerUser(t, newClient(t), ts.URL, "alice", "other-password")
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected the form to re-render, got status %d", resp.StatusCode)
	}
	if !strings.Contains(body, "already taken") {
		t.Error("expected a username-specific error message")
	}

	// The original row is untouched and no second row was created.
	again, err := store.FindUserByUsername("alice")
	if err != nil {
		t.Fatalf("expected the user row to survive: %v", err)
	}
	if again.ID != first.ID || again.PasswordHash != first.PasswordHash {
		t.Error("duplicate registration must not modify the existing user")
	}
}

func TestLogin(t *testing.T) {
	t.Run("correct credentials", func(t *testing.T) {
		ts, _ := newTestApp(t)
		client := newClient(t)
		readBody(t, registerUser(t, client, ts.URL, "alice", "secret1"))

		resp := loginUser(t, client, ts.URL, "alice", "secret1")
		if got := resp.Request.URL.Path; got != "/" {
			t.Errorf("expected to land on the dashboard, got %s", got)
		}
		body := readBody(t, resp)
		if !strings.Contains(body, "Login successful!") {
			t.Error("expected the login flash on the dashboard")
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		ts, _ := newTestApp(t)
		client := newClient(t)
		readBody(t, registerUser(t, client, ts.URL, "alice", "secret1"))

		resp := loginUser(t, client, ts.URL, "alice", "wrong-password")
		body := readBody(t, resp)
		if !strings.Contains(body, "Login unsuccessful") {
			t.Error("expected the failure message")
		}

		// Identity stays anonymous: the dashboard still bounces to login.
		resp, err := client.Get(ts.URL + "/")
		if err != nil {
			t.Fatalf("failed to fetch dashboard: %v", err)
		}
		readBody(t, resp)
		if got := resp.Request.URL.Path; got != "/login" {
			t.Errorf("expected redirect to /login, landed on %s", got)
		}
	})

	t.Run("unknown username", func(t *testing.T) {
		ts, _ := newTestApp(t)
		client := newClient(t)

		resp := loginUser(t, client, ts.URL, "nobody", "whatever1")
		body := readBody(t, resp)
		if !strings.Contains(body, "Login unsuccessful") {
			t.Error("unknown username should fail exactly like a wrong password")
		}
	})
}

func TestAuthGuardPreservesDestination(t *testing.T) {
	ts, store := newTestApp(t)

	id, err := store.CreateStudent(types.Student{
		RollNo: "A100", Name: "Jo", Email: "jo@x.com", Course: "CS",
	})
	if err != nil {
		t.Fatalf("failed to seed student: %v", err)
	}

	client := newClient(t)
	readBody(t, registerUser(t, client, ts.URL, "alice", "secret1"))

	// Hitting the protected edit page logged-out lands on the login form
	// with the original path carried along.
	target := fmt.Sprintf("/update/%d", id)
	resp, err := client.Get(ts.URL + target)
	if err != nil {
		t.Fatalf("failed to fetch protected page: %v", err)
	}
	if got := resp.Request.URL.Path; got != "/login" {
		t.Fatalf("expected redirect to /login, landed on %s", got)
	}
	if got := resp.Request.URL.Query().Get("next"); got != target {
		t.Errorf("expected next=%s, got %q", target, got)
	}
	body := readBody(t, resp)

	token := csrfPattern.FindStringSubmatch(body)
	if token == nil {
		t.Fatal("no csrf token on the login page")
	}

	// Logging in resumes the original request.
	resp, err = client.PostForm(ts.URL+"/login", url.Values{
		"csrf_token": {token[1]},
		"username":   {"alice"},
		"password":   {"secret1"},
		"next":       {target},
	})
	if err != nil {
		t.Fatalf("failed to post login: %v", err)
	}
	if got := resp.Request.URL.Path; got != target {
		t.Errorf("expected to resume at %s, landed on %s", target, got)
	}
	if body := readBody(t, resp); !strings.Contains(body, "A100") {
		t.Error("expected the pre-filled edit form")
	}
}

func TestAddStudentAppearsInListing(t *testing.T) {
	ts, store := newTestApp(t)
	client := newClient(t)
	signUpAndLogin(t, client, ts.URL)

	resp := addStudent(t, client, ts.URL, types.Student{
		RollNo: "A100", Name: "Jo", Email: "jo@x.com", Course: "CS",
	})
	if got := resp.Request.URL.Path; got != "/" {
		t.Errorf("expected redirect back to the dashboard, landed on %s", got)
	}
	body := readBody(t, resp)
	for _, want := range []string{"A100", "Jo", "jo@x.com", "CS"} {
		if !strings.Contains(body, want) {
			t.Errorf("listing should contain %q", want)
		}
	}

	students, err := store.GetStudents()
	if err != nil {
		t.Fatalf("failed to list students: %v", err)
	}
	if len(students) != 1 {
		t.Errorf("expected exactly one row, got %d", len(students))
	}
}

func TestRejectedStudentFormPersistsNothing(t *testing.T) {
	ts, store := newTestApp(t)
	client := newClient(t)
	signUpAndLogin(t, client, ts.URL)

	resp := addStudent(t, client, ts.URL, types.Student{
		RollNo: "A100", Name: "", Email: "jo@x.com", Course: "CS",
	})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected the form to re-render, got status %d", resp.StatusCode)
	}
	body := readBody(t, resp)
	if !strings.Contains(body, "This field is required.") {
		t.Error("expected a field-level error for the empty name")
	}

	students, err := store.GetStudents()
	if err != nil {
		t.Fatalf("failed to list students: %v", err)
	}
	if len(students) != 0 {
		t.Errorf("rejected submission must not create rows, got %d", len(students))
	}
}

func TestDeleteStudent(t *testing.T) {
	ts, store := newTestApp(t)
	client := newClient(t)
	signUpAndLogin(t, client, ts.URL)

	keepID, err := store.CreateStudent(types.Student{
		RollNo: "A100", Name: "Jo", Email: "jo@x.com", Course: "CS",
	})
	if err != nil {
		t.Fatalf("failed to seed student: %v", err)
	}
	dropID, err := store.CreateStudent(types.Student{
		RollNo: "B200", Name: "Priya", Email: "priya@x.com", Course: "Math",
	})
	if err != nil {
		t.Fatalf("failed to seed student: %v", err)
	}

	t.Run("missing id is a 404 and changes nothing", func(t *testing.T) {
		token := fetchCSRF(t, client, ts.URL+"/")
		resp, err := client.PostForm(ts.URL+"/delete/9999", url.Values{
			"csrf_token": {token},
		})
		if err != nil {
			t.Fatalf("failed to post delete: %v", err)
		}
		readBody(t, resp)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}

		students, err := store.GetStudents()
		if err != nil {
			t.Fatalf("failed to list students: %v", err)
		}
		if len(students) != 2 {
			t.Errorf("store must be unchanged, got %d rows", len(students))
		}
	})

	t.Run("existing id removes exactly that row", func(t *testing.T) {
		token := fetchCSRF(t, client, ts.URL+"/")
		resp, err := client.PostForm(fmt.Sprintf("%s/delete/%d", ts.URL, dropID), url.Values{
			"csrf_token": {token},
		})
		if err != nil {
			t.Fatalf("failed to post delete: %v", err)
		}
		readBody(t, resp)

		students, err := store.GetStudents()
		if err != nil {
			t.Fatalf("failed to list students: %v", err)
		}
		if len(students) != 1 || students[0].ID != keepID {
			t.Errorf("expected only the other row to survive, got %+v", students)
		}
	})
}

func TestUpdateStudent(t *testing.T) {
	ts, store := newTestApp(t)
	client := newClient(t)
	signUpAndLogin(t, client, ts.URL)

	id, err := store.CreateStudent(types.Student{
		RollNo: "A100", Name: "Jo", Email: "jo@x.com", Course: "CS",
	})
	if err != nil {
		t.Fatalf("failed to seed student: %v", err)
	}
	otherID, err := store.CreateStudent(types.Student{
		RollNo: "B200", Name: "Priya", Email: "priya@x.com", Course: "Math",
	})
	if err != nil {
		t.Fatalf("failed to seed student: %v", err)
	}

	editURL := fmt.Sprintf("%s/update/%d", ts.URL, id)
	token := fetchCSRF(t, client, editURL)
	resp, err := client.PostForm(editURL, url.Values{
		"csrf_token": {token},
		"roll_no":    {"A101"},
		"name":       {"Joanna"},
		"email":      {"joanna@x.com"},
		"course":     {"Physics"},
	})
	if err != nil {
		t.Fatalf("failed to post update: %v", err)
	}
	readBody(t, resp)

	updated, err := store.GetStudentByID(id)
	if err != nil {
		t.Fatalf("failed to fetch updated student: %v", err)
	}
	want := types.Student{ID: id, RollNo: "A101", Name: "Joanna", Email: "joanna@x.com", Course: "Physics"}
	if updated != want {
		t.Errorf("expected %+v, got %+v", want, updated)
	}

	other, err := store.GetStudentByID(otherID)
	if err != nil {
		t.Fatalf("failed to fetch other student: %v", err)
	}
	if other.Name != "Priya" {
		t.Errorf("update touched an unrelated row: %+v", other)
	}
}

func TestUpdateMissingStudentIs404(t *testing.T) {
	ts, _ := newTestApp(t)
	client := newClient(t)
	signUpAndLogin(t, client, ts.URL)

	resp, err := client.Get(ts.URL + "/update/9999")
	if err != nil {
		t.Fatalf("failed to fetch edit page: %v", err)
	}
	readBody(t, resp)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestPostWithoutCSRFTokenIsRejected(t *testing.T) {
	ts, store := newTestApp(t)
	client := newClient(t)
	signUpAndLogin(t, client, ts.URL)

	resp, err := client.PostForm(ts.URL+"/", url.Values{
		"roll_no": {"A100"},
		"name":    {"Jo"},
		"email":   {"jo@x.com"},
		"course":  {"CS"},
	})
	if err != nil {
		t.Fatalf("failed to post student: %v", err)
	}
	readBody(t, resp)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for a missing csrf token, got %d", resp.StatusCode)
	}

	students, err := store.GetStudents()
	if err != nil {
		t.Fatalf("failed to list students: %v", err)
	}
	if len(students) != 0 {
		t.Error("a rejected POST must not mutate the store")
	}
}

func TestOpenRedirectIsNeutralised(t *testing.T) {
	ts, _ := newTestApp(t)
	client := newClient(t)
	readBody(t, registerUser(t, client, ts.URL, "alice", "secret1"))

	token := fetchCSRF(t, client, ts.URL+"/login")
	resp, err := client.PostForm(ts.URL+"/login", url.Values{
		"csrf_token": {token},
		"username":   {"alice"},
		"password":   {"secret1"},
		"next":       {"https://evil.example/phish"},
	})
	if err != nil {
		t.Fatalf("failed to post login: %v", err)
	}
	readBody(t, resp)

	base, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatalf("failed to parse server URL: %v", err)
	}
	final := resp.Request.URL
	if final.Host != base.Host || final.Path != "/" {
		t.Errorf("expected to stay on the dashboard, landed on %s", final)
	}
}

func TestLogoutClearsIdentity(t *testing.T) {
	ts, _ := newTestApp(t)
	client := newClient(t)
	signUpAndLogin(t, client, ts.URL)

	resp, err := client.Get(ts.URL + "/logout")
	if err != nil {
		t.Fatalf("failed to logout: %v", err)
	}
	body := readBody(t, resp)
	if got := resp.Request.URL.Path; got != "/home" {
		t.Errorf("expected to land on /home, got %s", got)
	}
	if !strings.Contains(body, "logged out") {
		t.Error("expected the goodbye flash")
	}

	// The dashboard is protected again.
	resp, err = client.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("failed to fetch dashboard: %v", err)
	}
	readBody(t, resp)
	if got := resp.Request.URL.Path; got != "/login" {
		t.Errorf("expected redirect to /login, landed on %s", got)
	}
}

func TestAuthenticatedUserSkipsLoginAndRegister(t *testing.T) {
	ts, _ := newTestApp(t)
	client := newClient(t)
	signUpAndLogin(t, client, ts.URL)

	for _, path := range []string{"/login", "/register"} {
		resp, err := client.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("failed to fetch %s: %v", path, err)
		}
		readBody(t, resp)
		if got := resp.Request.URL.Path; got != "/" {
			t.Errorf("%s should bounce to the dashboard, landed on %s", path, got)
		}
	}
}

func TestUnknownPathRendersNotFoundPage(t *testing.T) {
	ts, _ := newTestApp(t)
	client := newClient(t)

	resp, err := client.Get(ts.URL + "/no-such-page")
	if err != nil {
		t.Fatalf("failed to fetch: %v", err)
	}
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Page Not Found") {
		t.Error("expected the minimal 404 page")
	}
}
