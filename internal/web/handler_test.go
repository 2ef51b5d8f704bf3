package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cexll/prctx/internal/command"
	"github.com/cexll/prctx/internal/github"
	"github.com/cexll/prctx/internal/github/data"
	ghtest "github.com/cexll/prctx/internal/github/testing"
)

func strPtr(s string) *string { return &s }

const hunk = "@@ -1 +1 @@"

func newTestHandler(t *testing.T) (*Handler, *ghtest.Server) {
	t.Helper()
	srv := ghtest.NewServer()
	t.Cleanup(srv.Close)

	srv.SetPullRequest("acme", "lang", 12, ghtest.PullRequestJSON(12, "Add parser", strPtr("desc"), "parser"))
	srv.SetComments("acme", "lang", 12, ghtest.JSONArray(
		ghtest.CommentJSON(1, "bob", "nice", hunk, 0),
		ghtest.CommentJSON(2, "amy", "thanks", hunk, 1),
	))
	srv.SetOpenPullRequests("acme", "lang", ghtest.JSONArray(
		ghtest.PullRequestJSON(12, "Add parser", nil, "parser"),
		ghtest.PullRequestJSON(15, "Fix lexer", nil, "lexer"),
	))

	fetcher := data.NewFetcher(data.New(srv.Client(), 0, nil))
	svc := command.NewService(fetcher, nil, command.Options{}, nil)
	return NewHandler(svc, nil), srv
}

func serve(h *Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandler_Health(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestHandler_Document(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/repos/acme/lang/pulls/12/document", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var out command.Output
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))

	wantText := "desc\n\n```diff\n" + hunk + "\n```\n\nnice\n\n```diff\n" + hunk + "\n```\n\nthanks"
	assert.Equal(t, wantText, out.Document.Text)
	assert.Equal(t, github.Identity{Owner: "acme", Repo: "lang", Number: 12}, out.Identity)
	assert.Equal(t, "Add parser", out.Title)
	require.Len(t, out.Document.Sections, 3)
	assert.Equal(t, "PR #12: Add parser", out.Document.Sections[0].Label)
	assert.Equal(t, "↪ Reply to comment by @amy", out.Document.Sections[2].Label)
	assert.Equal(t, len(wantText), out.Document.Sections[2].End)
	require.NoError(t, out.Document.Validate())
}

func TestHandler_DocumentFormats(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/repos/acme/lang/pulls/12/document?format=text", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "desc\n\n```diff"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/repos/acme/lang/pulls/12/document?format=yaml", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "label: 'PR #12: Add parser'")

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/repos/acme/lang/pulls/12/document?format=xml", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_DocumentRuneOffsets(t *testing.T) {
	h, srv := newTestHandler(t)
	srv.SetPullRequest("acme", "lang", 7, ghtest.PullRequestJSON(7, "Unicode", strPtr("héllo"), "u"))
	srv.SetComments("acme", "lang", 7, ghtest.JSONArray(ghtest.CommentJSON(1, "bob", "ok", hunk, 0)))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/repos/acme/lang/pulls/7/document?offsets=runes", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out command.Output
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Document.Sections, 2)
	assert.Equal(t, 5, out.Document.Sections[0].End)
	assert.Equal(t, 7, out.Document.Sections[1].Start)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/repos/acme/lang/pulls/7/document", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 6, out.Document.Sections[0].End)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/repos/acme/lang/pulls/7/document?offsets=words", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error, "unknown offset unit")
}

func TestHandler_DocumentDirect(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/repos/acme/lang/pulls/12/document", nil)
	req = mux.SetURLVars(req, map[string]string{"owner": "acme", "repo": "lang", "number": "12"})
	rec := httptest.NewRecorder()

	h.handleDocument(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_DocumentErrors(t *testing.T) {
	h, srv := newTestHandler(t)
	srv.SetPullRequest("acme", "lang", 40, `{"number": "forty"}`)
	srv.SetComments("acme", "lang", 40, "[]")

	tests := []struct {
		name   string
		path   string
		status int
		substr string
	}{
		{"not a number", "/repos/acme/lang/pulls/abc/document", http.StatusBadRequest, "invalid pull request identity"},
		{"zero", "/repos/acme/lang/pulls/0/document", http.StatusBadRequest, "invalid pull request identity"},
		{"missing", "/repos/acme/lang/pulls/99/document", http.StatusNotFound, "Not Found"},
		{"malformed", "/repos/acme/lang/pulls/40/document", http.StatusBadGateway, "malformed response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code)
			body := decodeError(t, rec)
			assert.Contains(t, body.Error, tt.substr)
			assert.Equal(t, rec.Header().Get(RequestIDHeader), body.RequestID)
		})
	}
}

func TestHandler_Pulls(t *testing.T) {
	h, srv := newTestHandler(t)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/repos/acme/lang/pulls?branch=lexer", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []pullSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, pullSummary{
		Number:  15,
		Title:   "Fix lexer",
		HeadRef: "lexer",
		URL:     "https://github.com/owner/repo/pull/15",
		Author:  "octocat",
	}, got[0])

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/repos/acme/lang/pulls?branch=none", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	reqs := srv.Requests()
	assert.Equal(t, "open", reqs[len(reqs)-1].Query.Get("state"))
}

func TestHandler_Commands(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/commands", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []commandInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 3)
	assert.Equal(t, command.NameOpen, got[0].Name)
	assert.True(t, got[0].Required)
	assert.False(t, got[2].Required)
}

func TestHandler_RunCommand(t *testing.T) {
	h, _ := newTestHandler(t)

	body := strings.NewReader(`{"argument": "https://github.com/acme/lang/pull/12"}`)
	rec := serve(h, httptest.NewRequest(http.MethodPost, "/commands/pr-link", body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out command.Output
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 12, out.Identity.Number)
	assert.Len(t, out.Document.Sections, 3)
}

func TestHandler_RunCommandErrors(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/commands/pr-close", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(h, httptest.NewRequest(http.MethodPost, "/commands/pr-open", strings.NewReader(`{"argument": "acme,lang"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, httptest.NewRequest(http.MethodPost, "/commands/pr-open", strings.NewReader(`{"argument": `)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error, "invalid request body")

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/commands/pr-open", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandler_Complete(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/commands/pr-open/complete", strings.NewReader(`{"argument": "acme,lang,1"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []command.Completion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []command.Completion{
		{Label: "#12: Add parser", Value: "acme,lang,12"},
		{Label: "#15: Fix lexer", Value: "acme,lang,15"},
	}, got)

	rec = serve(h, httptest.NewRequest(http.MethodPost, "/commands/pr-link/complete", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestHandler_RequestID(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = serve(h, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&data.APIError{Op: "x", Status: 403, Message: "Forbidden"}, http.StatusForbidden},
		{fmt.Errorf("wrap: %w", &data.APIError{Op: "x", Status: 404}), http.StatusNotFound},
		{fmt.Errorf("%w: bad", github.ErrInvalidIdentity), http.StatusBadRequest},
		{fmt.Errorf("%w for branch x", command.ErrNoMatchingPullRequest), http.StatusNotFound},
		{&data.MalformedResponseError{Op: "x", Field: "title"}, http.StatusBadGateway},
		{&data.TransportError{Op: "x", Err: errors.New("refused")}, http.StatusBadGateway},
		{&data.TransportError{Op: "x", Err: context.DeadlineExceeded}, http.StatusGatewayTimeout},
		{fmt.Errorf("fetch: %w", &data.TransportError{Op: "x", Err: context.Canceled}), http.StatusGatewayTimeout},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}
