// internal/httpserver/auth.go
//
// Accounts, JWT cookies and the auth middlewares.
// Guests play under an anonymous cookie; signing up or logging in claims
// the guest's round history and best scores for the account.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/robalobadob/matchgames/internal/game"
)

var (
	errUsernameTaken  = errors.New("username taken")
	errUsernameLength = errors.New("username must be 3-24 chars")
	errUsernameChars  = errors.New("username: letters, numbers, underscore only")
	errPasswordLength = errors.New("password must be 8-100 chars")
	errNoToken        = errors.New("no token")
	errBadToken       = errors.New("invalid token")
)

const (
	anonCookieName = "matchgames_anon"
	anonCookieTTL  = 180 * 24 * time.Hour
	myGamesLimit   = 50
)

// credentials is the body of both /auth/signup and /auth/login.
type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// authUser is the caller as seen by handlers behind the auth middlewares.
type authUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type ctxUserKey struct{}

func currentUser(r *http.Request) *authUser {
	me, _ := r.Context().Value(ctxUserKey{}).(*authUser)
	return me
}

func (s *Server) mountAuthRoutes(r chi.Router) {
	r.Post("/auth/signup", s.handleSignup)
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth())
		r.Get("/auth/me", s.handleMe)
		r.Get("/stats/me", s.handleMyStats)
		r.Get("/games/mine", s.handleMyGames)
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(currentUser(r))
}

func (s *Server) handleMyStats(w http.ResponseWriter, r *http.Request) {
	u, err := s.findUser(r.Context(), "id", currentUser(r).ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "not_found")
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":          u.ID,
		"gamesPlayed": u.GamesPlayed,
		"wins":        u.Wins,
		"streak":      u.Streak,
	})
}

// gameRow is one finished round in /games/mine.
type gameRow struct {
	ID         string `json:"id"`
	Variant    string `json:"variant"`
	Status     string `json:"status"`
	Moves      int    `json:"moves"`
	StartedAt  string `json:"startedAt"`
	FinishedAt string `json:"finishedAt"`
}

func (s *Server) handleMyGames(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.QueryContext(r.Context(),
		`SELECT id, variant, status, moves, started_at, finished_at
		   FROM games WHERE user_id=? ORDER BY finished_at DESC LIMIT ?`,
		currentUser(r).ID, myGamesLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	defer rows.Close()

	out := []gameRow{}
	for rows.Next() {
		var g gameRow
		if err := rows.Scan(&g.ID, &g.Variant, &g.Status, &g.Moves, &g.StartedAt, &g.FinishedAt); err != nil {
			log.Warn().Err(err).Msg("scan game row")
			continue
		}
		out = append(out, g)
	}
	_ = json.NewEncoder(w).Encode(out)
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentials, bool) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return c, false
	}
	c.Username = strings.TrimSpace(c.Username)
	return c, true
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	c, ok := decodeCredentials(w, r)
	if !ok {
		return
	}
	u, err := s.createUser(r.Context(), c)
	switch {
	case errors.Is(err, errUsernameTaken):
		writeError(w, http.StatusConflict, "Username taken")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.signIn(w, r, u) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": u.ID, "username": u.Username, "createdAt": u.CreatedAt})
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	c, ok := decodeCredentials(w, r)
	if !ok {
		return
	}
	u, err := s.findUser(r.Context(), "lower(username)", strings.ToLower(c.Username))
	if err != nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(c.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	if s.signIn(w, r, u) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": u.ID, "username": u.Username})
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, s.cookie(s.cfg.CookieName, "", time.Time{}))
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// signIn sets the auth cookie for u and moves the caller's guest data onto
// the account. It reports false after writing an error response.
func (s *Server) signIn(w http.ResponseWriter, r *http.Request, u *userRow) bool {
	tok, exp, err := s.signJWT(u)
	if err != nil {
		log.Error().Err(err).Msg("sign jwt")
		writeError(w, http.StatusInternalServerError, "sign_failed")
		return false
	}
	http.SetCookie(w, s.cookie(s.cfg.CookieName, tok, exp))
	s.claimAnon(r.Context(), s.ensureAnonID(w, r), u.ID)
	return true
}

// withOptionalAuth attaches the caller when a valid token is present and
// lets guests through otherwise.
func (s *Server) withOptionalAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if me, err := s.authenticate(r); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, me))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) requireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			me, err := s.authenticate(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, me)))
		})
	}
}

// authenticate accepts an HS256 token from the Authorization header or the
// auth cookie whose user still exists.
func (s *Server) authenticate(r *http.Request) (*authUser, error) {
	raw := s.tokenFrom(r)
	if raw == "" {
		return nil, errNoToken
	}
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, errBadToken
	}
	id, _ := claims["id"].(string)
	if id == "" {
		return nil, errBadToken
	}
	u, err := s.findUser(r.Context(), "id", id)
	if err != nil {
		return nil, err
	}
	return &authUser{ID: u.ID, Username: u.Username}, nil
}

func (s *Server) tokenFrom(r *http.Request) string {
	const scheme = "bearer "
	if a := r.Header.Get("Authorization"); len(a) > len(scheme) && strings.EqualFold(a[:len(scheme)], scheme) {
		return strings.TrimSpace(a[len(scheme):])
	}
	if c, err := r.Cookie(s.cfg.CookieName); err == nil {
		return c.Value
	}
	return ""
}

// ensureAnonID returns the caller's guest ID, issuing a cookie for a new one.
func (s *Server) ensureAnonID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(anonCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, s.cookie(anonCookieName, id, time.Now().Add(anonCookieTTL)))
	// Later lookups in this request see the new ID.
	r.AddCookie(&http.Cookie{Name: anonCookieName, Value: id})
	return id
}

// claimAnon moves a guest's rounds and best scores onto a user account.
// A guest best only replaces the account's when it is better.
func (s *Server) claimAnon(ctx context.Context, anonID, userID string) {
	if anonID == "" || userID == "" {
		return
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE games SET user_id=?, anonymous_id=NULL WHERE anonymous_id=?`, userID, anonID); err != nil {
		log.Warn().Err(err).Msg("claim anon games")
	}

	guest := s.scores.Scoped(ownerRef{AnonID: anonID}.key())
	user := s.scores.Scoped(ownerRef{UserID: userID}.key())
	for _, v := range []game.Variant{game.VariantMemory, game.VariantGuess} {
		score, ok := guest.Load(ctx, v.BestKey())
		if !ok {
			continue
		}
		if _, _, err := user.Improve(ctx, v.BestKey(), score, v.Ranking()); err != nil {
			log.Warn().Err(err).Str("variant", string(v)).Msg("claim anon best")
			continue
		}
		_ = guest.Clear(ctx, v.BestKey())
	}
}

// userRow matches the users table.
type userRow struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	GamesPlayed  int
	Wins         int
	Streak       int
}

func (s *Server) createUser(ctx context.Context, c credentials) (*userRow, error) {
	if err := validateSignup(c.Username, c.Password); err != nil {
		return nil, err
	}
	if _, err := s.findUser(ctx, "lower(username)", strings.ToLower(c.Username)); err == nil {
		return nil, errUsernameTaken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(c.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &userRow{
		ID:           uuid.NewString(),
		Username:     c.Username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO users (id, username, password_hash, created_at) VALUES (?,?,?,?)`,
		u.ID, u.Username, u.PasswordHash, u.CreatedAt.Format(time.RFC3339)); err != nil {
		return nil, err
	}
	return u, nil
}

// findUser loads the user whose column equals value. column is one of the
// fixed expressions used in this file, never caller input.
func (s *Server) findUser(ctx context.Context, column, value string) (*userRow, error) {
	var u userRow
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at, games_played, wins, streak
		   FROM users WHERE `+column+`=?`, value).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &created, &u.GamesPlayed, &u.Wins, &u.Streak)
	if err != nil {
		return nil, err
	}
	// A malformed timestamp leaves CreatedAt zero.
	u.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &u, nil
}

func validateSignup(username, password string) error {
	if len(username) < 3 || len(username) > 24 {
		return errUsernameLength
	}
	for _, r := range username {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		default:
			return errUsernameChars
		}
	}
	if len(password) < 8 || len(password) > 100 {
		return errPasswordLength
	}
	return nil
}

func (s *Server) signJWT(u *userRow) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(time.Duration(s.cfg.JWTExpiresDays) * 24 * time.Hour)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       u.ID,
		"username": u.Username,
		"exp":      exp.Unix(),
		"iat":      now.Unix(),
	})
	signed, err := tok.SignedString([]byte(s.cfg.JWTSecret))
	return signed, exp, err
}

// cookie builds an HttpOnly site-wide cookie. A zero expiry deletes it.
func (s *Server) cookie(name, value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Production,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	}
	if s.cfg.Production {
		// Cross-site clients only send Secure cookies marked None.
		c.SameSite = http.SameSiteNoneMode
	}
	if expires.IsZero() {
		c.MaxAge = -1
	}
	return c
}
