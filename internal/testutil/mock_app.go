// Package testutil provides testing utilities for the AJAX session.
package testutil

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Fixed values served by the mock application.
const (
	SignInPath        = "/account/sign_in"
	AuthenticityToken = "test-authenticity-token"
	CSRFToken         = "test-csrf-token"
	SessionCookie     = "_app_session"
	sessionValue      = "signed-in"
)

var signInPage = template.Must(template.New("sign_in").Parse(`<!DOCTYPE html>
<html>
<head><title>Sign in</title></head>
<body>
<form id="new_user" action="{{.Action}}" method="post">
  <input type="hidden" name="utf8" value="&#x2713;">
  <input type="hidden" name="authenticity_token" value="{{.Token}}">
  <input type="email" id="user_email" name="user[email]">
  <input type="password" id="user_password" name="user[password]">
  <input type="checkbox" id="user_remember_me" name="user[remember_me]" value="1">
  {{if .Failed}}<p class="error">Invalid email or password.</p>{{end}}
  <button type="submit" id="login" name="commit" value="Log in">Log in</button>
</form>
</body>
</html>`))

const dashboardPage = `<!DOCTYPE html>
<html>
<head><meta name="csrf-token" content="` + CSRFToken + `"><title>Dashboard</title></head>
<body><div id="app"></div></body>
</html>`

// MockResponse defines a canned answer for an AJAX endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is an AJAX request seen by the mock application.
type RecordedRequest struct {
	Method string
	// Path is relative to /ajax/, without the query.
	Path   string
	Query  string
	Body   string
	Header http.Header
}

// MockApp is a configurable fake of the web application: a sign-in form, a
// cookie session and an AJAX API serving paged resources.
type MockApp struct {
	server   *httptest.Server
	username string
	password string

	mu        sync.RWMutex
	resources map[string][]json.RawMessage
	responses map[string]MockResponse
	headers   map[string]string
	requests  []RecordedRequest

	// Tracking
	SignInAttempts int
	PageRequests   int
}

// NewMockApp starts a mock application accepting the given credentials.
func NewMockApp(username, password string) *MockApp {
	m := &MockApp{
		username:  username,
		password:  password,
		resources: make(map[string][]json.RawMessage),
		responses: make(map[string]MockResponse),
		headers:   make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(SignInPath, m.handleSignIn)
	mux.HandleFunc("/dashboard", m.handleDashboard)
	mux.HandleFunc("/ajax/", m.handleAjax)
	m.server = httptest.NewServer(mux)

	return m
}

// URL returns the mock server URL.
func (m *MockApp) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockApp) Close() {
	m.server.Close()
}

// SetRecords replaces the records of a resource. Each record must be a JSON
// object.
func (m *MockApp) SetRecords(resource string, records []json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[resource] = records
}

// SeedRecords fills a resource with n records {"id":1,...} in creation order.
func (m *MockApp) SeedRecords(resource string, n int) {
	records := make([]json.RawMessage, n)
	base := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range records {
		records[i] = json.RawMessage(fmt.Sprintf(
			`{"id":%d,"name":"%s %d","status":"active","created_at":%q}`,
			i+1, resource, i+1, base.Add(time.Duration(i)*time.Minute).Format(time.RFC3339),
		))
	}
	m.SetRecords(resource, records)
}

// SetResponse configures a canned response for method and an AJAX path
// relative to /ajax/, e.g. SetResponse("PUT", "variants/2", ...).
func (m *MockApp) SetResponse(method, path string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[responseKey(method, path)] = resp
}

// SetHeader adds a header to every AJAX response, e.g. rate limit headers.
func (m *MockApp) SetHeader(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headers[key] = value
}

// Requests returns the AJAX requests received so far.
func (m *MockApp) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// GetSignInAttempts returns the number of sign-in form submissions.
func (m *MockApp) GetSignInAttempts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.SignInAttempts
}

// GetPageRequests returns the number of paged resource reads served.
func (m *MockApp) GetPageRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PageRequests
}

// Reset clears all tracking counters.
func (m *MockApp) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.SignInAttempts = 0
	m.PageRequests = 0
}

func (m *MockApp) handleSignIn(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		m.renderSignIn(w, false)
	case http.MethodPost:
		m.mu.Lock()
		m.SignInAttempts++
		m.mu.Unlock()

		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("authenticity_token") != AuthenticityToken {
			http.Error(w, "Can't verify CSRF token authenticity.", http.StatusUnprocessableEntity)
			return
		}
		if r.PostForm.Get("user[email]") != m.username || r.PostForm.Get("user[password]") != m.password {
			m.renderSignIn(w, true)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: sessionValue, Path: "/", HttpOnly: true})
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (m *MockApp) renderSignIn(w http.ResponseWriter, failed bool) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = signInPage.Execute(w, struct {
		Action string
		Token  string
		Failed bool
	}{SignInPath, AuthenticityToken, failed})
}

func (m *MockApp) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if !signedIn(r) {
		http.Redirect(w, r, SignInPath, http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, dashboardPage)
}

func (m *MockApp) handleAjax(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/ajax/")
	body, _ := io.ReadAll(r.Body)

	m.mu.Lock()
	m.requests = append(m.requests, RecordedRequest{
		Method: r.Method,
		Path:   path,
		Query:  r.URL.RawQuery,
		Body:   string(body),
		Header: r.Header.Clone(),
	})
	for k, v := range m.headers {
		w.Header().Set(k, v)
	}
	resp, canned := m.responses[responseKey(r.Method, path)]
	records, isResource := m.resources[path]
	m.mu.Unlock()

	if !signedIn(r) {
		writeJSON(w, http.StatusUnauthorized, `{"error":"You need to sign in or sign up before continuing."}`)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead && r.Header.Get("X-CSRF-Token") != CSRFToken {
		writeJSON(w, http.StatusUnprocessableEntity, `{"error":"Invalid CSRF token"}`)
		return
	}

	switch {
	case canned:
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = io.WriteString(w, resp.Body)
	case isResource && r.Method == http.MethodGet:
		m.servePage(w, r, path, records)
	case r.Method == http.MethodGet:
		writeJSON(w, http.StatusNotFound, `{"error":"Not Found"}`)
	default:
		echo := string(body)
		if echo == "" {
			echo = "null"
		}
		writeJSON(w, http.StatusOK, fmt.Sprintf(`{"method":%q,"path":%q,"body":%s}`, r.Method, path, echo))
	}
}

// servePage answers page/limit queries the way the application does:
// page p holds records [(p-1)*limit, p*limit).
func (m *MockApp) servePage(w http.ResponseWriter, r *http.Request, resource string, records []json.RawMessage) {
	m.mu.Lock()
	m.PageRequests++
	m.mu.Unlock()

	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit < 1 {
		limit = 25
	}
	if limit > 250 {
		limit = 250
	}

	start := (page - 1) * limit
	if start > len(records) {
		start = len(records)
	}
	end := start + limit
	if end > len(records) {
		end = len(records)
	}

	items := records[start:end]
	if items == nil {
		items = []json.RawMessage{}
	}
	list, err := json.Marshal(items)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, `{"error":"encode"}`)
		return
	}
	writeJSON(w, http.StatusOK, fmt.Sprintf(`{%q:%s,"meta":{"total":%d}}`, resource, list, len(records)))
}

func signedIn(r *http.Request) bool {
	c, err := r.Cookie(SessionCookie)
	return err == nil && c.Value == sessionValue
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func responseKey(method, path string) string {
	return strings.ToUpper(method) + " " + strings.TrimPrefix(path, "/")
}

// NewFailureResponse creates a non-successful JSON response.
func NewFailureResponse(status int) MockResponse {
	return MockResponse{
		StatusCode: status,
		Body:       fmt.Sprintf(`{"error":%q}`, http.StatusText(status)),
	}
}

// NewHTMLResponse creates a successful response that is not JSON.
func NewHTMLResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       "<html><body>oops</body></html>",
		Headers:    map[string]string{"Content-Type": "text/html"},
	}
}

// NewRateLimitHeaders returns headers announcing remaining requests and a
// reset delay in seconds.
func NewRateLimitHeaders(limit, remaining, resetSeconds int) map[string]string {
	return map[string]string{
		"X-Rate-Limit-Limit":     strconv.Itoa(limit),
		"X-Rate-Limit-Remaining": strconv.Itoa(remaining),
		"X-Rate-Limit-Reset":     strconv.Itoa(resetSeconds),
	}
}
