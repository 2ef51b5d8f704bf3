package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"

	gh "github.com/google/go-github/v66/github"
	"github.com/gorilla/mux"
)

// RecordedRequest is what the fake server saw for one call.
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
}

type response struct {
	status int
	body   string
}

// Server is an httptest-backed stand-in for the three pull request endpoints:
//   - GET /repos/{owner}/{repo}/pulls/{number}
//   - GET /repos/{owner}/{repo}/pulls/{number}/comments
//   - GET /repos/{owner}/{repo}/pulls?state=open
//
// Responses are raw JSON so tests can serve malformed payloads. Anything not
// registered answers 404 {"message":"Not Found"}.
type Server struct {
	srv *httptest.Server

	mu        sync.Mutex
	responses map[string]response
	requests  []RecordedRequest
}

// NewServer starts a fake GitHub. Call Close when done.
func NewServer() *Server {
	s := &Server{responses: make(map[string]response)}

	r := mux.NewRouter()
	r.HandleFunc("/repos/{owner}/{repo}/pulls/{number:[0-9]+}", s.serve).Methods(http.MethodGet)
	r.HandleFunc("/repos/{owner}/{repo}/pulls/{number:[0-9]+}/comments", s.serve).Methods(http.MethodGet)
	r.HandleFunc("/repos/{owner}/{repo}/pulls", s.serve).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(s.serve)

	s.srv = httptest.NewServer(r)
	return s
}

// URL is the API base URL with a trailing slash.
func (s *Server) URL() string { return s.srv.URL + "/" }

// Close shuts the server down.
func (s *Server) Close() { s.srv.Close() }

// Client returns a go-github client pointed at the server.
func (s *Server) Client() *gh.Client {
	client := gh.NewClient(s.srv.Client())
	base, _ := url.Parse(s.URL())
	client.BaseURL = base
	client.UploadURL = base
	return client
}

// HTTPClient returns the server's transport-aware client.
func (s *Server) HTTPClient() *http.Client { return s.srv.Client() }

// SetPullRequest serves body for GET /repos/{owner}/{repo}/pulls/{number}.
func (s *Server) SetPullRequest(owner, repo string, number int, body string) {
	s.Respond(fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, number), http.StatusOK, body)
}

// SetComments serves body for the review comments of a pull request.
func (s *Server) SetComments(owner, repo string, number int, body string) {
	s.Respond(fmt.Sprintf("/repos/%s/%s/pulls/%d/comments", owner, repo, number), http.StatusOK, body)
}

// SetOpenPullRequests serves body for the open pull request list.
func (s *Server) SetOpenPullRequests(owner, repo, body string) {
	s.Respond(fmt.Sprintf("/repos/%s/%s/pulls", owner, repo), http.StatusOK, body)
}

// Respond registers a raw status and body for path.
func (s *Server) Respond(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[path] = response{status: status, body: body}
}

// Requests returns the calls seen so far in arrival order.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
	})
	resp, ok := s.responses[r.URL.Path]
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found","documentation_url":"https://docs.github.com/rest"}`))
		return
	}
	w.WriteHeader(resp.status)
	_, _ = w.Write([]byte(resp.body))
}

// PullRequestJSON renders a well-formed pull request payload. A nil body is
// encoded as JSON null.
func PullRequestJSON(number int, title string, body *string, headRef string) string {
	payload := map[string]any{
		"number":     number,
		"title":      title,
		"state":      "open",
		"html_url":   fmt.Sprintf("https://github.com/owner/repo/pull/%d", number),
		"body":       body,
		"user":       userJSON("octocat", 1),
		"created_at": "2024-01-02T03:04:05Z",
		"updated_at": "2024-01-03T03:04:05Z",
		"head":       map[string]any{"ref": headRef, "sha": "abc123"},
		"base":       map[string]any{"ref": "main", "sha": "def456"},
	}
	return mustJSON(payload)
}

// CommentJSON renders a well-formed review comment payload. inReplyTo of zero
// omits the field.
func CommentJSON(id int64, login, body, diffHunk string, inReplyTo int64) string {
	payload := map[string]any{
		"id":         id,
		"body":       body,
		"user":       userJSON(login, id+100),
		"created_at": "2024-01-04T03:04:05Z",
		"updated_at": "2024-01-04T03:04:05Z",
		"html_url":   fmt.Sprintf("https://github.com/owner/repo/pull/1#discussion_r%d", id),
		"path":       "main.go",
		"diff_hunk":  diffHunk,
	}
	if inReplyTo != 0 {
		payload["in_reply_to_id"] = inReplyTo
	}
	return mustJSON(payload)
}

// JSONArray joins already-encoded values into a JSON array. Items are not
// validated so malformed entries can be served.
func JSONArray(items ...string) string {
	return "[" + strings.Join(items, ",") + "]"
}

func userJSON(login string, id int64) map[string]any {
	return map[string]any{
		"login":      login,
		"id":         id,
		"avatar_url": fmt.Sprintf("https://avatars.githubusercontent.com/u/%d", id),
	}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
