// internal/httpserver/routes_scores.go
//
// Read-only score endpoints:
//   - GET /scores/me?variant=          → the caller's best and personal leaderboard
//   - GET /scores/daily?variant=&date= → the shared daily leaderboard (default today)

package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/matchgames/internal/daily"
	"github.com/robalobadob/matchgames/internal/game"
	"github.com/robalobadob/matchgames/internal/scores"
)

// mountScores registers the /scores routes on r.
func (s *Server) mountScores(r chi.Router) {
	r.Route("/scores", func(r chi.Router) {
		r.Get("/me", s.handleMyScores)
		r.Get("/daily", s.handleDailyScores)
	})
}

type myScoresRes struct {
	Variant     game.Variant   `json:"variant"`
	Best        *int           `json:"best"`
	Leaderboard []scores.Entry `json:"leaderboard"`
}

func (s *Server) handleMyScores(w http.ResponseWriter, r *http.Request) {
	variant, err := game.ParseVariant(r.URL.Query().Get("variant"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown_variant")
		return
	}
	mine := s.scores.Scoped(s.owner(w, r).key())
	res := myScoresRes{Variant: variant, Leaderboard: mine.Leaderboard(r.Context(), variant.LeaderboardKey())}
	if best, ok := mine.Load(r.Context(), variant.BestKey()); ok {
		res.Best = &best
	}
	_ = json.NewEncoder(w).Encode(res)
}

type dailyScoresRes struct {
	Date    string         `json:"date"`
	Variant game.Variant   `json:"variant"`
	Top     []scores.Entry `json:"top"`
}

func (s *Server) handleDailyScores(w http.ResponseWriter, r *http.Request) {
	variant, err := game.ParseVariant(r.URL.Query().Get("variant"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown_variant")
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		date = daily.DateKey(s.clock.Now())
	} else if _, err := time.Parse(time.DateOnly, date); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date")
		return
	}
	top := s.scores.Leaderboard(r.Context(), daily.LeaderboardKey(string(variant), date))
	_ = json.NewEncoder(w).Encode(dailyScoresRes{Date: date, Variant: variant, Top: top})
}
