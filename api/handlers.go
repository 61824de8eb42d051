package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"memory-match/auth"
	"memory-match/config"
	"memory-match/game"
	"memory-match/matcherrors"
	"memory-match/session"
	"memory-match/storage"
)

// Tables is what the handlers need from the lobby.
type Tables interface {
	Table(ctx context.Context, owner, tableID string) (*session.Session, string, error)
}

// SettingsStore returns the settings store for an owner. It may return nil.
type SettingsStore func(owner string) *storage.Store

// Handler holds dependencies for API handlers.
type Handler struct {
	Config   *config.Config
	Tables   Tables
	Verifier *auth.Verifier
	Settings SettingsStore
}

// NewHandler creates a new API handler with the given dependencies.
func NewHandler(cfg *config.Config, tables Tables, verifier *auth.Verifier, settings SettingsStore) *Handler {
	return &Handler{
		Config:   cfg,
		Tables:   tables,
		Verifier: verifier,
		Settings: settings,
	}
}

type ctxIdentityKey struct{}

// Router mounts every endpoint. ws, when non-nil, is served at /ws.
func (h *Handler) Router(ws http.HandlerFunc) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	if ws != nil {
		r.Get("/ws", ws)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))
		r.Use(h.withIdentity)

		r.Get("/settings", h.GetSettings)
		r.Put("/settings", h.PutSettings)

		r.Route("/tables/{id}", func(r chi.Router) {
			r.Get("/", h.GetTable)
			r.Post("/actions", h.PostAction)
			r.Get("/history", h.GetHistory)
			r.Delete("/history", h.DeleteHistory)
			r.Get("/highscores", h.GetHighScores)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return r
}

// cors sets permissive CORS headers and answers preflight requests.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withIdentity verifies the bearer token when auth is enabled and stores the
// identity in the request context. Anonymous callers share the empty owner.
func (h *Handler) withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := h.Verifier.Verify(auth.BearerToken(r))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authorization required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxIdentityKey{}, id)))
	})
}

func identity(r *http.Request) auth.Identity {
	id, _ := r.Context().Value(ctxIdentityKey{}).(auth.Identity)
	return id
}

func (h *Handler) table(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, _, err := h.Tables.Table(r.Context(), identity(r).UserID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, matcherrors.ErrTableNotFound) {
			writeError(w, http.StatusNotFound, "table not found")
		} else {
			slog.Error("open table failed", "tag", "api", "err", err)
			writeError(w, http.StatusInternalServerError, "failed to open table")
		}
		return nil, false
	}
	return s, true
}

// GetTable returns the current view of a table, opening it if needed.
func (h *Handler) GetTable(w http.ResponseWriter, r *http.Request) {
	s, ok := h.table(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

// ActionResponse reports whether an action changed the table.
type ActionResponse struct {
	Applied bool      `json:"applied"`
	View    game.View `json:"view"`
}

// PostAction applies DEAL, FLIP or RESET. Ignored actions still answer 200
// with applied=false, except a DEAL with a bad deck.
func (h *Handler) PostAction(w http.ResponseWriter, r *http.Request) {
	var req game.ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	action, err := req.ToAction(h.Config.MaxNameLength)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s, ok := h.table(w, r)
	if !ok {
		return
	}

	_, out := s.Dispatch(r.Context(), action)
	if d, isDeal := action.(game.Deal); isDeal && !out.Applied && d.Cards != nil {
		writeError(w, http.StatusUnprocessableEntity, matcherrors.ErrInvalidDeck.Error())
		return
	}
	writeJSON(w, http.StatusOK, ActionResponse{Applied: out.Applied, View: s.View()})
}

// GetHistory returns the completed games of a table, oldest first.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	s, ok := h.table(w, r)
	if !ok {
		return
	}
	history := s.State().GameHistory
	if history == nil {
		history = []game.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, history)
}

// DeleteHistory forgets every completed game of a table.
func (h *Handler) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	s, ok := h.table(w, r)
	if !ok {
		return
	}
	s.ClearHistory(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// GetHighScores returns the table's best scores.
func (h *Handler) GetHighScores(w http.ResponseWriter, r *http.Request) {
	s, ok := h.table(w, r)
	if !ok {
		return
	}
	scores, err := s.HighScores(r.Context())
	if err != nil {
		slog.Error("load high scores failed", "tag", "api", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load high scores")
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

func (h *Handler) defaultSettings() storage.Settings {
	return storage.Settings{
		"player1Name":       h.Config.Player1Name,
		"player2Name":       h.Config.Player2Name,
		"difficulty":        h.Config.Difficulty,
		"oddCard":           h.Config.OddCard,
		"resolutionDelayMs": h.Config.ResolutionDelayMS,
	}
}

func (h *Handler) settingsStore(r *http.Request) *storage.Store {
	if h.Settings == nil {
		return nil
	}
	return h.Settings(identity(r).UserID)
}

// GetSettings returns the caller's settings merged over the server defaults.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsStore(r).LoadSettings(r.Context(), h.defaultSettings())
	if err != nil {
		slog.Error("load settings failed", "tag", "api", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// PutSettings merges the body into the stored settings and returns the result.
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var patch storage.Settings
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	store := h.settingsStore(r)
	settings, err := store.LoadSettings(r.Context(), h.defaultSettings())
	if err != nil {
		slog.Error("load settings failed", "tag", "api", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	for k, v := range patch {
		settings[k] = v
	}
	if err := store.SaveSettings(r.Context(), settings); err != nil {
		slog.Error("save settings failed", "tag", "api", "err", err)
		writeError(w, http.StatusServiceUnavailable, "failed to save settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response failed", "tag", "api", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
