// internal/httpserver/server.go
//
// HTTP server wiring for the matchgames backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health".
//   - Game endpoints (optional auth): /game/new, /game/activate, /game/restart,
//     /game/reset, GET/DELETE /game/{id}, websocket /game/{id}/events.
//   - Score endpoints: /scores/me, /scores/daily.
//   - Auth + profile endpoints (require auth): /auth/*, /stats/me, /games/mine.
//   - Round history persisted to the games table, user stats bumped on finish.
//
// Notes:
//   - Sessions live in memory (store.Store); only scores and history are
//     written to the database.
//   - Guests are identified by an anonymous cookie; each player's scores live
//     under their own key prefix.

package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/matchgames/internal/config"
	"github.com/robalobadob/matchgames/internal/daily"
	"github.com/robalobadob/matchgames/internal/game"
	"github.com/robalobadob/matchgames/internal/rng"
	"github.com/robalobadob/matchgames/internal/scores"
	"github.com/robalobadob/matchgames/internal/store"
)

// Server bundles router, session registry, score store and DB handle.
type Server struct {
	r        *chi.Mux
	cfg      config.Config
	sessions store.Store
	scores   *scores.Store
	db       *sql.DB
	clock    game.Clock
}

// New constructs a Server, installs middleware, and registers routes.
func New(cfg config.Config, sessions store.Store, db *sql.DB) *Server {
	s := &Server{
		r:        chi.NewRouter(),
		cfg:      cfg,
		sessions: sessions,
		scores:   scores.NewStore(scores.NewSQLiteKV(db)),
		db:       db,
		clock:    game.RealClock{},
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(s.cors)          // credentials-friendly CORS

	// Websocket stream stays outside the JSON/timeout group.
	s.r.With(s.withOptionalAuth()).Get("/game/{id}/events", s.handleEvents)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
		r.Use(jsonContentType)                 // default JSON responses

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"service":"matchgames","endpoints":["/health","POST /game/new","POST /game/activate","GET /game/{id}/events","/scores/*","/auth/*"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"ok":true}`))
		})

		// Game + score endpoints, guests allowed
		r.Group(func(r chi.Router) {
			r.Use(s.withOptionalAuth())
			r.Post("/game/new", s.handleNewGame)
			r.Post("/game/activate", s.handleActivate)
			r.Post("/game/restart", s.handleRestart)
			r.Post("/game/reset", s.handleReset)
			r.Get("/game/{id}", s.handleGetGame)
			r.Delete("/game/{id}", s.handleDeleteGame)
			s.mountScores(r)
		})

		// Auth + profile/stats
		s.mountAuthRoutes(r)
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error { return http.ListenAndServe(addr, s.r) }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// SweepSessions evicts idle sessions every interval until ctx is done.
func (s *Server) SweepSessions(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.sessions.Sweep(ctx, s.cfg.SessionTTL); n > 0 {
				log.Info().Int("evicted", n).Msg("swept idle sessions")
			}
		}
	}
}

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", s.cfg.ClientOrigin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeError writes {"error": code} with status.
func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}

// ------------------------------ GAME ---------------------------------------

// newGameReq/Res payloads for POST /game/new.
type newGameReq struct {
	Variant      string `json:"variant"`      // "memory" | "guess"
	Pairs        int    `json:"pairs"`        // memory board size
	Options      int    `json:"options"`      // guess option count
	TimeLimitSec int    `json:"timeLimitSec"` // 0 disables the countdown
	Daily        bool   `json:"daily"`        // shared board for today
}
type gameRes struct {
	GameID string        `json:"gameId"`
	State  game.Snapshot `json:"state"`
}

// handleNewGame creates a controller for the caller, starts the round and
// registers the session.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json")
			return
		}
	}
	variant, err := game.ParseVariant(req.Variant)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown_variant")
		return
	}
	if req.TimeLimitSec < 0 {
		writeError(w, http.StatusBadRequest, "invalid_time_limit")
		return
	}

	owner := s.owner(w, r)
	cfg := game.Config{
		ID:              uuid.NewString(),
		Variant:         variant,
		Pairs:           req.Pairs,
		Options:         req.Options,
		RevealDelay:     s.cfg.RevealDelay,
		TimeLimit:       time.Duration(req.TimeLimitSec) * time.Second,
		LeaderboardSize: s.cfg.LeaderboardSize,
	}
	sess := &store.Session{ID: cfg.ID, Owner: owner.key()}

	ctrl, err := s.newController(r.Context(), cfg, owner, req.Daily, sess)
	if err != nil {
		if errors.Is(err, game.ErrInvalidConfig) {
			writeError(w, http.StatusBadRequest, "invalid_config")
			return
		}
		log.Error().Err(err).Msg("new controller")
		writeError(w, http.StatusInternalServerError, "create_failed")
		return
	}
	sess.Controller = ctrl
	ctrl.Start()

	if err := s.sessions.Save(r.Context(), sess); err != nil {
		ctrl.Close()
		log.Error().Err(err).Msg("save session")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}
	_ = json.NewEncoder(w).Encode(gameRes{GameID: sess.ID, State: ctrl.Snapshot()})
}

// newController builds a controller wired to the caller's scores and to the
// round history listener.
func (s *Server) newController(ctx context.Context, cfg game.Config, owner ownerRef, isDaily bool, sess *store.Session) (*game.Controller, error) {
	var src rng.Source
	if isDaily {
		now := s.clock.Now()
		sess.Daily = daily.DateKey(now)
		src = daily.Source(now, s.cfg.DailySalt)
		cfg.ExtraLeaderboards = []string{daily.LeaderboardKey(string(cfg.Variant), sess.Daily)}
	}

	ctrl, err := game.NewController(ctx, cfg, src, s.clock, s.playerScores(owner))
	if err != nil {
		return nil, err
	}
	ctrl.Subscribe(func(e game.Event) {
		if e.Kind == game.EventRoundComplete {
			s.recordRound(owner, cfg, e.Outcome, e.Stats)
		}
	})
	return ctrl, nil
}

// tileReq is the payload for POST /game/activate.
type tileReq struct {
	GameID string `json:"gameId"`
	TileID int    `json:"tileId"`
}
type activateRes struct {
	Accepted bool          `json:"accepted"`
	State    game.Snapshot `json:"state"`
}

// handleActivate forwards a tile activation. Ignored input is not an error:
// the response reports accepted=false with the unchanged state.
func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	var req tileReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	sess, ok := s.sessionFor(w, r, req.GameID)
	if !ok {
		return
	}
	accepted := sess.Controller.Activate(r.Context(), req.TileID)
	_ = json.NewEncoder(w).Encode(activateRes{Accepted: accepted, State: sess.Controller.Snapshot()})
}

type gameIDReq struct {
	GameID string `json:"gameId"`
	Hard   bool   `json:"hard"`
}

// handleRestart deals the next round, keeping the streak.
func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	var req gameIDReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	sess, ok := s.sessionFor(w, r, req.GameID)
	if !ok {
		return
	}
	sess.Controller.NextRound()
	_ = json.NewEncoder(w).Encode(gameRes{GameID: sess.ID, State: sess.Controller.Snapshot()})
}

// handleReset resets the session; hard additionally clears the caller's
// stored best score and leaderboard for the variant.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req gameIDReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	sess, ok := s.sessionFor(w, r, req.GameID)
	if !ok {
		return
	}
	if req.Hard {
		sess.Controller.HardReset(r.Context())
	} else {
		sess.Controller.Reset()
	}
	sess.Controller.Start()
	_ = json.NewEncoder(w).Encode(gameRes{GameID: sess.ID, State: sess.Controller.Snapshot()})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	_ = json.NewEncoder(w).Encode(gameRes{GameID: sess.ID, State: sess.Controller.Snapshot()})
}

func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	_ = s.sessions.Delete(r.Context(), sess.ID)
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// sessionFor loads a session owned by the caller, writing the error response
// itself when it cannot.
func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request, id string) (*store.Session, bool) {
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing_game_id")
		return nil, false
	}
	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return nil, false
	}
	if sess.Owner != s.owner(w, r).key() {
		writeError(w, http.StatusNotFound, "not_found")
		return nil, false
	}
	return sess, true
}

// ------------------------------ history ------------------------------------

// recordRound persists a finished round and bumps user stats (best effort,
// non-fatal if it fails).
func (s *Server) recordRound(owner ownerRef, cfg game.Config, o *game.Outcome, st *game.Stats) {
	if o == nil || st == nil {
		return
	}
	finished := s.clock.Now().UTC()
	started := finished.Add(-time.Duration(o.ElapsedMs) * time.Millisecond)

	tx, err := s.db.Begin()
	if err != nil {
		log.Warn().Err(err).Msg("begin round history")
		return
	}
	defer func() { _ = tx.Rollback() }()

	var userID, anonID any
	if owner.UserID != "" {
		userID = owner.UserID
	} else {
		anonID = owner.AnonID
	}
	if _, err := tx.Exec(`INSERT INTO games (id, user_id, anonymous_id, variant, started_at, finished_at, status, moves)
	                      VALUES (?,?,?,?,?,?,?,?)`,
		uuid.NewString(), userID, anonID, string(cfg.Variant),
		started.Format(time.RFC3339), finished.Format(time.RFC3339), string(o.Kind), st.Moves,
	); err != nil {
		log.Warn().Err(err).Str("game", cfg.ID).Msg("insert round history")
		return
	}
	if owner.UserID != "" {
		if err := bumpStats(tx, owner.UserID, o.Kind == game.OutcomeWon); err != nil {
			log.Warn().Err(err).Str("user", owner.UserID).Msg("bump stats")
			return
		}
	}
	if err := tx.Commit(); err != nil {
		log.Warn().Err(err).Msg("commit round history")
	}
}

// bumpStats increments games played; updates wins and streak based on result (within tx).
func bumpStats(tx *sql.Tx, userID string, won bool) error {
	var gp, wins, streak int
	row := tx.QueryRow(`SELECT games_played, wins, streak FROM users WHERE id=?`, userID)
	if err := row.Scan(&gp, &wins, &streak); err != nil {
		return err
	}
	gp++
	if won {
		wins++
		streak++
	} else {
		streak = 0
	}
	_, err := tx.Exec(`UPDATE users SET games_played=?, wins=?, streak=? WHERE id=?`, gp, wins, streak, userID)
	return err
}

// ------------------------------- owners ------------------------------------

// ownerRef identifies the player behind a request.
type ownerRef struct {
	UserID string
	AnonID string
}

// key is the session owner key and score prefix for the player.
func (o ownerRef) key() string {
	if o.UserID != "" {
		return "user:" + o.UserID + ":"
	}
	return "anon:" + o.AnonID + ":"
}

// owner resolves the authenticated user or the anonymous cookie.
func (s *Server) owner(w http.ResponseWriter, r *http.Request) ownerRef {
	if me := currentUser(r); me != nil {
		return ownerRef{UserID: me.ID}
	}
	return ownerRef{AnonID: s.ensureAnonID(w, r)}
}

// playerScores scopes best scores and personal leaderboards to the player
// while daily leaderboards stay shared.
func (s *Server) playerScores(owner ownerRef) game.ScoreStore {
	return sharedDaily{Store: s.scores.Scoped(owner.key()), global: s.scores}
}

type sharedDaily struct {
	*scores.Store
	global *scores.Store
}

func (p sharedDaily) Record(ctx context.Context, key string, score int, at time.Time, r scores.Ranking, limit int) ([]scores.Entry, error) {
	if strings.HasPrefix(key, daily.KeyPrefix) {
		return p.global.Record(ctx, key, score, at, r, limit)
	}
	return p.Store.Record(ctx, key, score, at, r, limit)
}
