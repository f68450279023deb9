package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	account "github.com/Codewithsaffy/ai-todo-app/domain/account"
	domain "github.com/Codewithsaffy/ai-todo-app/domain/task"
	"github.com/Codewithsaffy/ai-todo-app/modules/auth"
	"github.com/Codewithsaffy/ai-todo-app/modules/task"
	"github.com/go-monolith/mono"
	"github.com/gofiber/fiber/v2"
)

func newTestModule(authPort auth.AuthPort, taskPort task.TaskPort) *APIModule {
	m := NewModule(Config{Addr: ":0"})
	m.authPort = authPort
	m.taskPort = taskPort
	return m
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string, cookies ...*http.Cookie) (*http.Response, string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, string(data)
}

func sessionCookie(token string) *http.Cookie {
	return &http.Cookie{Name: auth.SessionCookieName, Value: token}
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name         string
		registerErr  error
		wantStatus   int
		wantContains string
	}{
		{name: "success", wantStatus: http.StatusCreated, wantContains: "Registration successful"},
		{name: "duplicate", registerErr: errors.New("register request failed: User already exists"), wantStatus: http.StatusBadRequest, wantContains: `"User already exists"`},
		{name: "missing fields", registerErr: errors.New("register request failed: Missing required fields"), wantStatus: http.StatusBadRequest, wantContains: "Missing required fields"},
		{name: "internal", registerErr: errors.New("register request failed: disk I/O error"), wantStatus: http.StatusInternalServerError, wantContains: "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotName string
			authPort := &mockAuthPort{registerFunc: func(_ context.Context, name, _, _ string) error {
				gotName = name
				return tt.registerErr
			}}
			app := newTestModule(authPort, &mockTaskPort{}).newApp()

			resp, body := doRequest(t, app, "POST", "/api/auth/register", `{"name":"Ada","email":"ada@example.com","password":"pw"}`)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", resp.StatusCode, tt.wantStatus, body)
			}
			if !strings.Contains(body, tt.wantContains) {
				t.Errorf("body = %s, want it to contain %s", body, tt.wantContains)
			}
			if gotName != "Ada" {
				t.Errorf("name = %q, want Ada", gotName)
			}
			if strings.Contains(body, "disk I/O") {
				t.Error("internal error details leaked to the client")
			}
		})
	}
}

func TestLogin(t *testing.T) {
	expires := time.Now().Add(7 * 24 * time.Hour)
	authPort := &mockAuthPort{loginFunc: func(_ context.Context, email, password string) (*auth.Session, error) {
		switch {
		case email == "new@example.com":
			return nil, errors.New("login request failed: " + auth.ErrNotVerified.Error())
		case password != "secret":
			return nil, errors.New("login request failed: " + auth.ErrInvalidCredentials.Error())
		}
		return &auth.Session{Token: "tok-1", ExpiresAt: expires}, nil
	}}
	app := newTestModule(authPort, &mockTaskPort{}).newApp()

	resp, body := doRequest(t, app, "POST", "/api/auth/login", `{"email":"ada@example.com","password":"secret"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", resp.StatusCode, body)
	}
	if !strings.Contains(body, "Login successful") {
		t.Errorf("body = %s", body)
	}
	cookie := findCookie(resp, auth.SessionCookieName)
	if cookie == nil {
		t.Fatal("session cookie not set")
	}
	if cookie.Value != "tok-1" || !cookie.HttpOnly || cookie.SameSite != http.SameSiteStrictMode || cookie.Path != "/" {
		t.Errorf("cookie = %+v", cookie)
	}

	resp, _ = doRequest(t, app, "POST", "/api/auth/login", `{"email":"new@example.com","password":"secret"}`)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("unverified status = %d, want 403", resp.StatusCode)
	}

	resp, body = doRequest(t, app, "POST", "/api/auth/login", `{"email":"ada@example.com","password":"wrong"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad credentials status = %d, want 401", resp.StatusCode)
	}
	if !strings.Contains(body, "Invalid credentials") {
		t.Errorf("body = %s", body)
	}
	if findCookie(resp, auth.SessionCookieName) != nil {
		t.Error("failed login must not set a cookie")
	}
}

func TestLogout(t *testing.T) {
	var revoked string
	authPort := &mockAuthPort{logoutFunc: func(_ context.Context, token string) error {
		revoked = token
		return nil
	}}
	app := newTestModule(authPort, &mockTaskPort{}).newApp()

	resp, body := doRequest(t, app, "POST", "/api/auth/logout", "", sessionCookie("tok-1"))
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Logout successful") {
		t.Fatalf("status = %d body = %s", resp.StatusCode, body)
	}
	if revoked != "tok-1" {
		t.Errorf("revoked = %q, want tok-1", revoked)
	}
	cookie := findCookie(resp, auth.SessionCookieName)
	if cookie == nil || cookie.Value != "" || cookie.Expires.After(time.Now()) {
		t.Errorf("cookie = %+v, want an expired empty cookie", cookie)
	}

	// Logout without a session still succeeds.
	resp, _ = doRequest(t, app, "POST", "/api/auth/logout", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestMe(t *testing.T) {
	authPort := &mockAuthPort{whoAmIFunc: func(_ context.Context, token string) (*account.PublicAccount, error) {
		switch token {
		case "tok-1":
			return &account.PublicAccount{ID: "acc-1", Name: "Ada", Email: "ada@example.com", IsVerified: true}, nil
		case "tok-gone":
			return nil, errors.New("whoami request failed: " + auth.ErrAccountNotFound.Error())
		}
		return nil, errors.New("whoami request failed: " + auth.ErrExpiredToken.Error())
	}}
	app := newTestModule(authPort, &mockTaskPort{}).newApp()

	tests := []struct {
		name       string
		cookies    []*http.Cookie
		wantStatus int
		wantBody   string
	}{
		{name: "no session", wantStatus: http.StatusUnauthorized, wantBody: "Not authenticated"},
		{name: "valid", cookies: []*http.Cookie{sessionCookie("tok-1")}, wantStatus: http.StatusOK, wantBody: `"User is logged in"`},
		{name: "expired", cookies: []*http.Cookie{sessionCookie("tok-old")}, wantStatus: http.StatusUnauthorized, wantBody: "Not authenticated"},
		{name: "account deleted", cookies: []*http.Cookie{sessionCookie("tok-gone")}, wantStatus: http.StatusNotFound, wantBody: "User not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doRequest(t, app, "GET", "/api/auth/me", "", tt.cookies...)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if !strings.Contains(body, tt.wantBody) {
				t.Errorf("body = %s, want %s", body, tt.wantBody)
			}
			if strings.Contains(body, "password") {
				t.Error("response exposes password fields")
			}
		})
	}
}

func TestVerifyEmail(t *testing.T) {
	authPort := &mockAuthPort{verifyEmailFunc: func(_ context.Context, token string) error {
		if token == "good" {
			return nil
		}
		return errors.New("verify-email request failed: " + auth.ErrInvalidVerificationToken.Error())
	}}
	app := newTestModule(authPort, &mockTaskPort{}).newApp()

	resp, body := doRequest(t, app, "GET", "/api/auth/verify/good", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Email verified successfully") {
		t.Errorf("status = %d body = %s", resp.StatusCode, body)
	}

	resp, body = doRequest(t, app, "GET", "/api/auth/verify/used", "")
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(body, "Invalid or expired token") {
		t.Errorf("status = %d body = %s", resp.StatusCode, body)
	}
}

func TestTasks_RequireSession(t *testing.T) {
	app := newTestModule(&mockAuthPort{authenticateFunc: sessionFor("tok-1", "acc-1")}, &mockTaskPort{}).newApp()

	for _, path := range []string{"/api/tasks", "/api/tasks/t1"} {
		resp, body := doRequest(t, app, "GET", path, "")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s status = %d, want 401", path, resp.StatusCode)
		}
		if !strings.Contains(body, "Not authenticated") {
			t.Errorf("body = %s", body)
		}
	}

	resp, _ := doRequest(t, app, "GET", "/api/tasks", "", sessionCookie("forged"))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("forged session status = %d, want 401", resp.StatusCode)
	}
}

func TestTasks_DeletedAccountIsUnauthenticated(t *testing.T) {
	authPort := &mockAuthPort{authenticateFunc: func(context.Context, string) (*account.Claims, error) {
		return nil, errors.New("authenticate request failed: " + auth.ErrAccountNotFound.Error())
	}}
	app := newTestModule(authPort, &mockTaskPort{}).newApp()

	for _, path := range []string{"/api/tasks", "/api/tasks/t1"} {
		resp, body := doRequest(t, app, "GET", path, "", sessionCookie("tok-of-deleted-account"))
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s status = %d, want 401", path, resp.StatusCode)
		}
		if !strings.Contains(body, "Not authenticated") {
			t.Errorf("body = %s", body)
		}
	}
}

func TestTasks_CRUD(t *testing.T) {
	stored := domain.Task{ID: "t1", OwnerID: "acc-1", Title: "Pay bills", Status: domain.StatusPending}
	var listedBy, searched string
	taskPort := &mockTaskPort{
		listFunc: func(_ context.Context, ownerID string) ([]domain.Task, error) {
			listedBy = ownerID
			return []domain.Task{stored}, nil
		},
		searchFunc: func(_ context.Context, _, query string) ([]domain.Task, error) {
			searched = query
			return []domain.Task{}, nil
		},
		createFunc: func(_ context.Context, ownerID, title, description, status string) (*domain.Task, error) {
			if status == "done" {
				return nil, errors.New("create-task request failed: " + domain.ErrInvalidStatus.Error())
			}
			return &domain.Task{ID: "t2", OwnerID: ownerID, Title: title, Status: domain.StatusPending}, nil
		},
		getFunc: func(_ context.Context, _, id string) (*domain.Task, error) {
			if id == "t1" {
				return &stored, nil
			}
			return nil, errors.New("get-task request failed: " + task.ErrTaskNotFound.Error())
		},
		updateFunc: func(_ context.Context, _, _ string, patch domain.Patch) (*domain.Task, error) {
			updated := stored
			updated.Status = domain.Status(*patch.Status)
			return &updated, nil
		},
		deleteFunc: func(_ context.Context, _, id string) (bool, error) {
			return id == "t1", nil
		},
	}
	app := newTestModule(&mockAuthPort{authenticateFunc: sessionFor("tok-1", "acc-1")}, taskPort).newApp()
	session := sessionCookie("tok-1")

	resp, body := doRequest(t, app, "GET", "/api/tasks", "", session)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"_id":"t1"`) {
		t.Errorf("list: status = %d body = %s", resp.StatusCode, body)
	}
	if listedBy != "acc-1" {
		t.Errorf("listed for %q, want acc-1", listedBy)
	}
	if strings.Contains(body, "acc-1") {
		t.Error("owner id must not be exposed")
	}

	resp, _ = doRequest(t, app, "GET", "/api/tasks?q=Bills", "", session)
	if resp.StatusCode != http.StatusOK || searched != "Bills" {
		t.Errorf("search: status = %d query = %q", resp.StatusCode, searched)
	}

	resp, body = doRequest(t, app, "POST", "/api/tasks", `{"title":"Gym"}`, session)
	if resp.StatusCode != http.StatusCreated || !strings.Contains(body, `"status":"pending"`) {
		t.Errorf("create: status = %d body = %s", resp.StatusCode, body)
	}

	resp, body = doRequest(t, app, "POST", "/api/tasks", `{"title":"Gym","status":"done"}`, session)
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(body, domain.ErrInvalidStatus.Error()) {
		t.Errorf("create invalid: status = %d body = %s", resp.StatusCode, body)
	}

	resp, _ = doRequest(t, app, "GET", "/api/tasks/missing", "", session)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get missing: status = %d, want 404", resp.StatusCode)
	}

	resp, body = doRequest(t, app, "PATCH", "/api/tasks/t1", `{"status":"completed"}`, session)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"status":"completed"`) {
		t.Errorf("update: status = %d body = %s", resp.StatusCode, body)
	}

	resp, body = doRequest(t, app, "DELETE", "/api/tasks/missing", "", session)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"deleted":false`) {
		t.Errorf("delete missing: status = %d body = %s", resp.StatusCode, body)
	}
}

func TestTasks_InvalidBody(t *testing.T) {
	app := newTestModule(&mockAuthPort{authenticateFunc: sessionFor("tok-1", "acc-1")}, &mockTaskPort{}).newApp()
	resp, body := doRequest(t, app, "POST", "/api/tasks", `{"title":`, sessionCookie("tok-1"))
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(body, ErrInvalidBody.Error()) {
		t.Errorf("status = %d body = %s", resp.StatusCode, body)
	}
}

func TestHealth(t *testing.T) {
	m := newTestModule(&mockAuthPort{}, &mockTaskPort{})
	m.AddHealthCheck(staticHealth{name: "task", status: mono.HealthStatus{Healthy: true, Message: "operational"}})
	app := m.newApp()

	resp, body := doRequest(t, app, "GET", "/health", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"status":"healthy"`) {
		t.Errorf("status = %d body = %s", resp.StatusCode, body)
	}

	m.AddHealthCheck(staticHealth{name: "mailer", status: mono.HealthStatus{Healthy: false, Message: "not started"}})
	resp, body = doRequest(t, app, "GET", "/health", "")
	if resp.StatusCode != http.StatusServiceUnavailable || !strings.Contains(body, `"status":"degraded"`) {
		t.Errorf("status = %d body = %s", resp.StatusCode, body)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New("register request failed: User already exists"), http.StatusBadRequest},
		{errors.New("login request failed: Please verify your email before logging in"), http.StatusForbidden},
		{errors.New("authenticate request failed: token has expired"), http.StatusUnauthorized},
		{errors.New("verify-email request failed: Invalid or expired token"), http.StatusBadRequest},
		{errors.New("get-task request failed: task not found"), http.StatusNotFound},
		{ErrRateLimited, http.StatusTooManyRequests},
		{errors.New("nats: timeout"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got, _ := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%q) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
