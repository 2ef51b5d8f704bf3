package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/cexll/prctx/internal/command"
	"github.com/cexll/prctx/internal/github"
	"github.com/cexll/prctx/internal/github/data"
	"github.com/cexll/prctx/internal/prompt"
)

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

type ctxKey struct{}

// Service is what the handler serves.
type Service interface {
	Registry() *command.Registry
	Open(ctx context.Context, id github.Identity) (*command.Output, error)
	ListOpen(ctx context.Context, owner, repo, branch string) ([]data.PullRequest, error)
}

// Handler serves pull request documents over HTTP
type Handler struct {
	service  Service
	registry *command.Registry
	logger   *slog.Logger
}

// NewHandler creates a new web handler
func NewHandler(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{service: service, registry: service.Registry(), logger: logger}
}

// RegisterRoutes registers the API routes and the request ID middleware.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.Use(h.requestID)
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/repos/{owner}/{repo}/pulls/{number}/document", h.handleDocument).Methods("GET")
	r.HandleFunc("/repos/{owner}/{repo}/pulls", h.handlePulls).Methods("GET")
	r.HandleFunc("/commands", h.handleCommands).Methods("GET")
	r.HandleFunc("/commands/{name}", h.handleRun).Methods("POST")
	r.HandleFunc("/commands/{name}/complete", h.handleComplete).Methods("POST")
}

// Router returns a router with every route registered.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// RequestID returns the ID assigned to the request carrying ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))

		h.logger.Info("request",
			"request_id", id, "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration", time.Since(start))
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleDocument assembles the document for one pull request. The format
// query parameter selects text, yaml or sections output instead of JSON;
// offsets=runes reports section offsets in runes.
func (h *Handler) handleDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := github.ParseArgs(vars["owner"] + "," + vars["repo"] + "," + vars["number"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	format := prompt.FormatJSON
	if raw := r.URL.Query().Get("format"); raw != "" {
		if format, err = prompt.ParseFormat(raw); err != nil {
			h.badRequest(w, r, err)
			return
		}
	}
	offsets, err := prompt.ParseOffsets(r.URL.Query().Get("offsets"))
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	out, err := h.service.Open(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out.Document = out.Document.In(offsets)

	if format == prompt.FormatJSON {
		h.writeJSON(w, http.StatusOK, out)
		return
	}
	w.Header().Set("Content-Type", contentType(format))
	w.WriteHeader(http.StatusOK)
	if err := prompt.Render(w, out.Document, format); err != nil {
		h.logger.Error("render document", "request_id", RequestID(r.Context()), "error", err)
	}
}

type pullSummary struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	HeadRef string `json:"head_ref"`
	URL     string `json:"html_url"`
	Author  string `json:"author"`
}

func (h *Handler) handlePulls(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	prs, err := h.service.ListOpen(r.Context(), vars["owner"], vars["repo"], r.URL.Query().Get("branch"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]pullSummary, 0, len(prs))
	for _, pr := range prs {
		out = append(out, pullSummary{
			Number:  pr.Number,
			Title:   pr.Title,
			HeadRef: pr.HeadRef,
			URL:     pr.URL,
			Author:  pr.Author.Login,
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

type commandInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Argument    string `json:"argument"`
	Required    bool   `json:"required"`
}

func (h *Handler) handleCommands(w http.ResponseWriter, r *http.Request) {
	cmds := h.registry.Commands()
	out := make([]commandInfo, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, commandInfo{Name: c.Name, Description: c.Description, Argument: c.ArgHint, Required: c.ArgRequired})
	}
	h.writeJSON(w, http.StatusOK, out)
}

type commandRequest struct {
	Argument string `json:"argument"`
}

func (h *Handler) decodeArgument(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req commandRequest
	if r.Body != nil && r.ContentLength != 0 {
		dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			h.badRequest(w, r, fmt.Errorf("invalid request body: %w", err))
			return "", false
		}
	}
	return req.Argument, true
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	arg, ok := h.decodeArgument(w, r)
	if !ok {
		return
	}
	out, err := h.registry.Run(r.Context(), mux.Vars(r)["name"], arg)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	arg, ok := h.decodeArgument(w, r)
	if !ok {
		return
	}
	out, err := h.registry.Complete(r.Context(), mux.Vars(r)["name"], arg)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
}

// StatusFor maps an error onto the HTTP status reported to clients.
func StatusFor(err error) int {
	var transportErr *data.TransportError
	if code := data.StatusCode(err); code != 0 {
		return code
	}
	switch {
	case errors.Is(err, github.ErrInvalidIdentity):
		return http.StatusBadRequest
	case errors.Is(err, command.ErrNoMatchingPullRequest), errors.Is(err, command.ErrUnknownCommand):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case data.IsMalformed(err), errors.As(err, &transportErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	h.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), RequestID: RequestID(r.Context())})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	id := RequestID(r.Context())
	h.logger.Warn("request failed", "request_id", id, "status", status, "error", err)
	h.writeJSON(w, status, errorBody{Error: err.Error(), RequestID: id})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		h.logger.Error("encode response", "error", err)
	}
}

func contentType(f prompt.Format) string {
	switch f {
	case prompt.FormatYAML:
		return "application/yaml"
	default:
		return "text/plain; charset=utf-8"
	}
}
