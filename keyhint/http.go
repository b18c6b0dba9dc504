package keyhint

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/keyhint/keyhint/internal/driver"
	"github.com/hazyhaar/keyhint/kit"
	"github.com/hazyhaar/keyhint/shield"
)

// Version is reported by the MCP server.
const Version = "0.1.0"

// MCPServer returns an MCP server exposing the keyhint tools.
func (n *Navigator) MCPServer() *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "keyhint", Version: Version}, nil)
	n.RegisterMCP(srv)
	return srv
}

// Handler returns the HTTP control surface, MCP included under /mcp.
func (n *Navigator) Handler() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.Stack() {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/v1/targets", n.handleTargets)
	r.Route("/v1/pages", func(r chi.Router) {
		r.Get("/", n.handlePages)
		r.Post("/", n.handleOpen)
		r.Route("/{id}", func(r chi.Router) {
			r.Use(pageIDCtx)
			r.Delete("/", n.handleDetach)
			r.Get("/session", n.handleSession)
			r.Post("/keys", n.handleKeys)
			r.Post("/teardown", n.handleTeardown)
			r.Get("/events", n.handleEvents)
		})
	})

	srv := n.MCPServer()
	r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil))
	return r
}

func pageIDCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := kit.WithPageID(r.Context(), chi.URLParam(r, "id"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (n *Navigator) handlePages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"pages": n.Pages()})
}

func (n *Navigator) handleTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := n.Targets()
	if err != nil {
		n.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"targets": targets})
}

func (n *Navigator) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID       string `json:"id"`
		URL      string `json:"url"`
		TargetID string `json:"target_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ID == "" || (req.URL == "" && req.TargetID == "") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id and url or target_id required"})
		return
	}
	info, err := n.Open(r.Context(), PageConfig{ID: req.ID, URL: req.URL, TargetID: req.TargetID})
	if err != nil {
		n.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (n *Navigator) handleDetach(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := n.Detach(r.Context(), id); err != nil {
		n.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "detached", "page_id": id})
}

func (n *Navigator) handleSession(w http.ResponseWriter, r *http.Request) {
	describe := r.URL.Query().Get("describe")
	view, err := n.Session(r.Context(), chi.URLParam(r, "id"), describe == "1" || describe == "true")
	if err != nil {
		n.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (n *Navigator) handleKeys(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must be {\"key\": \"...\"}"})
		return
	}
	res, err := n.Press(r.Context(), chi.URLParam(r, "id"), req.Key)
	if err != nil {
		n.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (n *Navigator) handleTeardown(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := n.Teardown(r.Context(), id); err != nil {
		n.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "page_id": id})
}

func (n *Navigator) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(v, 1000)
	}
	events, err := n.Events(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		n.writeError(w, r, err)
		return
	}
	if events == nil {
		events = []HintEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// statusOf maps errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrUnknownPage), errors.Is(err, ErrNoEventLog):
		return http.StatusNotFound
	case errors.Is(err, ErrPageExists):
		return http.StatusConflict
	case errors.Is(err, ErrClosed), errors.Is(err, driver.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (n *Navigator) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	if code >= 500 {
		shield.GetLogger(r.Context()).Warn("keyhint: request failed", "status", code, "error", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
