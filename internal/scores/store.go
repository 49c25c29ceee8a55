// internal/scores/store.go
//
// Score persistence consulted by the round controller.
// Responsibilities:
//   - Load/Save/Clear a single integer per key, string-encoded.
//   - Maintain bounded JSON leaderboards under a single key.
//
// Notes:
//   - Reads never fail from the caller's point of view: a missing key,
//     an unparsable value, or a storage error all mean "no record".
//   - Leaderboards are re-sorted and truncated on every write.
//   - Read-modify-write operations (Improve, Record) are serialized by a
//     mutex shared with every Scoped copy of the store.

package scores

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultLeaderboardSize is used when a non-positive limit is requested.
const DefaultLeaderboardSize = 10

// Entry is one leaderboard row.
type Entry struct {
	Score     int    `json:"score"`
	Timestamp string `json:"timestamp"` // RFC3339, UTC
}

// Store encodes scores into a KV.
type Store struct {
	kv KV
	mu *sync.Mutex
}

// NewStore wraps kv.
func NewStore(kv KV) *Store { return &Store{kv: kv, mu: new(sync.Mutex)} }

// Scoped returns a Store whose keys live under prefix.
func (s *Store) Scoped(prefix string) *Store {
	return &Store{kv: WithPrefix(s.kv, prefix), mu: s.mu}
}

// Load returns the integer stored at key. ok is false when there is no
// usable record.
func (s *Store) Load(ctx context.Context, key string) (int, bool) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("score load failed; treating as absent")
		return 0, false
	}
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("unparsable score; treating as absent")
		return 0, false
	}
	return n, true
}

// Save stores v at key.
func (s *Store) Save(ctx context.Context, key string, v int) error {
	if err := s.kv.Set(ctx, key, strconv.Itoa(v)); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Improve stores v at key when r ranks it strictly better than the stored
// value, or when nothing usable is stored. It returns the value stored
// afterwards. A failed write still reports v as the best.
func (s *Store) Improve(ctx context.Context, key string, v int, r Ranking) (best int, improved bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.Load(ctx, key)
	if !r.Improves(v, cur, ok) {
		return cur, false, nil
	}
	return v, true, s.Save(ctx, key, v)
}

// Clear removes key.
func (s *Store) Clear(ctx context.Context, key string) error {
	if err := s.kv.Delete(ctx, key); err != nil {
		return fmt.Errorf("clear %s: %w", key, err)
	}
	return nil
}

// Leaderboard returns the entries stored at key, best first.
// Corrupted JSON yields an empty board.
func (s *Store) Leaderboard(ctx context.Context, key string) []Entry {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("leaderboard load failed; treating as empty")
		return []Entry{}
	}
	if !ok || raw == "" {
		return []Entry{}
	}
	var out []Entry
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("corrupted leaderboard; treating as empty")
		return []Entry{}
	}
	return out
}

// Record inserts score into the leaderboard at key, re-sorts it by r and
// truncates it to limit entries before writing it back.
func (s *Store) Record(ctx context.Context, key string, score int, at time.Time, r Ranking, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := append(s.Leaderboard(ctx, key), Entry{
		Score:     score,
		Timestamp: at.UTC().Format(time.RFC3339),
	})
	r.Sort(entries)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}
	if err := s.kv.Set(ctx, key, string(b)); err != nil {
		return nil, fmt.Errorf("record %s: %w", key, err)
	}
	return entries, nil
}
