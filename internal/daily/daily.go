// Package daily derives a shared board per calendar day.
package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"time"

	"github.com/robalobadob/matchgames/internal/rng"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Seed returns a deterministic seed for a date using HMAC(salt, YYYY-MM-DD).
func Seed(date time.Time, salt string) uint64 {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(DateKey(date)))
	sum := h.Sum(nil)
	// first 8 bytes are plenty for a PCG seed
	return binary.BigEndian.Uint64(sum[:8])
}

// Source returns the random source every player shares for date.
func Source(date time.Time, salt string) rng.Source {
	return rng.NewSeeded(Seed(date, salt))
}

// KeyPrefix starts every daily leaderboard key.
const KeyPrefix = "leaderboard:daily:"

// LeaderboardKey is the key of the daily leaderboard for a variant.
func LeaderboardKey(variant, date string) string {
	return KeyPrefix + variant + ":" + date
}
