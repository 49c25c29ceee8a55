// internal/game/engine.go
//
// Round controller for a single matching-game session.
// Responsibilities:
//   - Build and reshuffle boards for the memory and guessing variants.
//   - Drive select → compare → resolve through the SelectionTracker.
//   - Schedule deferred reverts and the optional countdown, and cancel them
//     on reset so no stale callback touches a replaced board.
//   - End-of-round accounting against the ScoreStore (save only on strict
//     improvement, per-variant ranking).
//   - Publish UI notifications (tile/streak/countdown/round events).
//
// Notes:
//   - All state is guarded by one mutex; timer callbacks re-enter through it
//     and carry the board generation they were issued for.
//   - Invalid or repeated input is ignored, never reported as an error.
package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/matchgames/internal/rng"
	"github.com/robalobadob/matchgames/internal/scores"
)

// ScoreStore is the persistence the controller consults at round end.
// *scores.Store implements it.
type ScoreStore interface {
	Load(ctx context.Context, key string) (int, bool)
	Improve(ctx context.Context, key string, v int, r scores.Ranking) (best int, improved bool, err error)
	Clear(ctx context.Context, key string) error
	Record(ctx context.Context, key string, score int, at time.Time, r scores.Ranking, limit int) ([]scores.Entry, error)
}

// Controller owns the board, selection, stats and timers of one session.
type Controller struct {
	mu sync.Mutex // guards everything below

	cfg    Config
	src    rng.Source
	clock  Clock
	scores ScoreStore // nil disables persistence
	logger zerolog.Logger

	board     *Board
	tracker   SelectionTracker
	phase     Phase
	stats     Stats
	best      int
	hasBest   bool
	outcome   *Outcome
	remaining time.Duration
	startedAt time.Time

	generation uint64
	pending    map[uint64]Timer
	nextTimer  uint64

	listeners    []listenerEntry
	nextListener uint64
	events       []Event
	delivering   bool // a goroutine is draining events
	closed       bool
}

type listenerEntry struct {
	id uint64
	fn Listener
}

// NewController validates cfg, loads the stored best score once and builds
// the first board. The round starts in PhaseIdle; call Start to play.
// src and clock default to a crypto-seeded source and the real clock;
// store may be nil.
func NewController(ctx context.Context, cfg Config, src rng.Source, clock Clock, store ScoreStore) (*Controller, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		src = rng.New()
	}
	if clock == nil {
		clock = RealClock{}
	}
	c := &Controller{
		cfg:       cfg,
		src:       src,
		clock:     clock,
		scores:    store,
		logger:    log.With().Str("game", cfg.ID).Str("variant", string(cfg.Variant)).Logger(),
		pending:   make(map[uint64]Timer),
		remaining: cfg.TimeLimit,
	}
	if store != nil {
		c.best, c.hasBest = store.Load(ctx, cfg.Variant.BestKey())
		if c.hasBest && cfg.Variant == VariantGuess {
			c.stats.BestStreak = c.best
		}
	}
	b, err := c.buildBoard()
	if err != nil {
		return nil, err
	}
	c.board = b
	return c, nil
}

// Subscribe registers l for every future event and returns a function that
// removes it. Listeners run without the controller lock held, one event at a
// time. A listener may call back into the controller; the events that call
// produces are queued and delivered after the current event reaches every
// listener. A listener that blocks stalls delivery for all of them.
func (c *Controller) Subscribe(l Listener) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextListener
	c.nextListener++
	c.listeners = append(c.listeners, listenerEntry{id: id, fn: l})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, e := range c.listeners {
			if e.id == id {
				c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// Start moves an idle round to AwaitingFirst and arms the countdown.
// It is a no-op in any other phase.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.unlockAndEmit()
	if c.closed || c.phase != PhaseIdle {
		return
	}
	c.begin()
}

// Activate handles a "tile activated" event. It returns false when the
// input was ignored (unknown tile, tracker locked, tile not hidden, wrong
// phase); in that case nothing changed.
func (c *Controller) Activate(ctx context.Context, tileID int) bool {
	c.mu.Lock()
	defer c.unlockAndEmit()

	if c.closed || (c.phase != PhaseAwaitingFirst && c.phase != PhaseAwaitingSecond) {
		c.logger.Debug().Int("tile", tileID).Stringer("phase", c.phase).Msg("input ignored: phase")
		return false
	}
	if tileID < 0 || tileID >= len(c.board.Tiles) {
		c.logger.Debug().Int("tile", tileID).Msg("input ignored: out of range")
		return false
	}
	t := &c.board.Tiles[tileID]
	if !c.tracker.Arm(t) {
		c.logger.Debug().Int("tile", tileID).Bool("locked", c.tracker.Locked()).Msg("input ignored: not armable")
		return false
	}
	t.State = Armed
	c.pushTile(t)

	switch c.cfg.Variant {
	case VariantGuess:
		c.tracker.Lock()
		c.stats.Moves++
		c.phase = PhaseResolving
		c.resolveGuess(ctx, t)
	default:
		if c.tracker.Len() < 2 {
			c.phase = PhaseAwaitingSecond
			return true
		}
		c.stats.Moves++
		c.phase = PhaseResolving
		c.resolvePair(ctx)
	}
	return true
}

// NextRound deals a fresh board and starts playing immediately. Moves and
// resolved counts restart from zero; the streak carries over.
func (c *Controller) NextRound() {
	c.mu.Lock()
	defer c.unlockAndEmit()
	if c.closed {
		return
	}
	c.replaceBoard()
	c.stats.Moves, c.stats.Resolved = 0, 0
	c.begin()
}

// Reset cancels every pending callback, clears the selection, zeroes the
// stats (except the best streak) and deals a new board. The round returns
// to PhaseIdle.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.unlockAndEmit()
	if c.closed {
		return
	}
	c.reset(false)
}

// HardReset is Reset plus clearing the persisted best score and this
// variant's leaderboard.
func (c *Controller) HardReset(ctx context.Context) {
	c.mu.Lock()
	defer c.unlockAndEmit()
	if c.closed {
		return
	}
	c.reset(true)
	if c.scores == nil {
		return
	}
	for _, key := range []string{c.cfg.Variant.BestKey(), c.cfg.Variant.LeaderboardKey()} {
		if err := c.scores.Clear(ctx, key); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("clear score")
		}
	}
}

// Close cancels all timers and drops listeners. The controller ignores
// every call afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.generation++
	c.cancelTimers()
	c.listeners = nil
	c.events = nil
}

// Pending reports how many scheduled callbacks are outstanding.
func (c *Controller) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// ------------------------------ resolution ---------------------------------

// resolvePair evaluates the two armed memory tiles.
func (c *Controller) resolvePair(ctx context.Context) {
	ids := c.tracker.Armed()
	a, b := &c.board.Tiles[ids[0]], &c.board.Tiles[ids[1]]

	if Evaluate(a.Value, b.Value) == Equal {
		a.State, b.State = Matched, Matched
		c.pushTile(a)
		c.pushTile(b)
		c.stats.Resolved++
		c.setStreak(c.stats.Streak + 1)
		c.tracker.Clear()
		c.phase = PhaseAwaitingFirst
		if c.board.AllMatched() {
			c.complete(ctx, Outcome{Kind: OutcomeWon, Metric: c.stats.Moves})
		}
		return
	}

	c.setStreak(0)
	c.scheduleRevert(ids)
}

// resolveGuess compares the armed option with the target.
func (c *Controller) resolveGuess(ctx context.Context, t *Tile) {
	if Evaluate(t.Value, c.board.Target) == Equal {
		t.State = Matched
		c.pushTile(t)
		c.stats.Resolved++
		c.setStreak(c.stats.Streak + 1)
		c.tracker.Clear()
		c.complete(ctx, Outcome{Kind: OutcomeWon, Metric: c.stats.Streak})
		return
	}

	c.breakStreak(ctx)
	c.scheduleRevert([]int{t.ID})
}

// scheduleRevert flips ids back to Hidden after the reveal delay. The
// tracker stays locked until then.
func (c *Controller) scheduleRevert(ids []int) {
	c.schedule(c.cfg.RevealDelay, func() {
		for _, id := range ids {
			t := &c.board.Tiles[id]
			if t.State == Armed {
				t.State = Hidden
				c.pushTile(t)
			}
		}
		c.tracker.Clear()
		c.phase = PhaseAwaitingFirst
	})
}

// complete ends the round with o and runs end-of-round accounting.
func (c *Controller) complete(ctx context.Context, o Outcome) {
	c.cancelTimers()
	for _, id := range c.tracker.Armed() {
		t := &c.board.Tiles[id]
		if t.State == Armed {
			t.State = Hidden
			c.pushTile(t)
		}
	}
	c.tracker.Clear()
	c.phase = PhaseComplete
	o.ElapsedMs = c.clock.Now().Sub(c.startedAt).Milliseconds()

	switch o.Kind {
	case OutcomeWon:
		o.Improved = c.account(ctx, o.Metric)
	case OutcomeTimedOut:
		c.breakStreak(ctx)
	}

	c.outcome = &o
	stats := c.stats
	c.push(Event{Kind: EventRoundComplete, Outcome: &o, Stats: &stats})
	c.logger.Info().Str("outcome", string(o.Kind)).Int("metric", o.Metric).
		Int("moves", c.stats.Moves).Bool("improved", o.Improved).Msg("round complete")
}

// account persists metric when it strictly improves the stored best and, for
// the memory variant, records it on the leaderboards. The comparison runs
// against the stored value, not the one loaded at construction: other
// controllers may share the key.
func (c *Controller) account(ctx context.Context, metric int) bool {
	r := c.cfg.Variant.Ranking()
	var improved bool
	if c.scores == nil {
		improved = r.Improves(metric, c.best, c.hasBest)
		if improved {
			c.best, c.hasBest = metric, true
		}
	} else {
		best, ok, err := c.scores.Improve(ctx, c.cfg.Variant.BestKey(), metric, r)
		if err != nil {
			c.logger.Warn().Err(err).Int("metric", metric).Msg("save best score")
		}
		improved = ok
		c.best, c.hasBest = best, true
	}
	if c.cfg.Variant == VariantMemory {
		c.record(ctx, metric)
	}
	return improved
}

// breakStreak resets the streak. A guessing streak that ends is recorded on
// the leaderboards.
func (c *Controller) breakStreak(ctx context.Context) {
	ended := c.stats.Streak
	c.setStreak(0)
	if c.cfg.Variant == VariantGuess && ended > 0 {
		c.record(ctx, ended)
	}
}

func (c *Controller) record(ctx context.Context, metric int) {
	if c.scores == nil {
		return
	}
	keys := append([]string{c.cfg.Variant.LeaderboardKey()}, c.cfg.ExtraLeaderboards...)
	now := c.clock.Now()
	for _, key := range keys {
		if _, err := c.scores.Record(ctx, key, metric, now, c.cfg.Variant.Ranking(), c.cfg.LeaderboardSize); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("record leaderboard")
		}
	}
}

func (c *Controller) setStreak(n int) {
	if n == c.stats.Streak {
		return
	}
	c.stats.Streak = n
	if n > c.stats.BestStreak {
		c.stats.BestStreak = n
	}
	c.pushStreak()
}

// -------------------------------- rounds -----------------------------------

// begin enters AwaitingFirst and starts the countdown when configured.
func (c *Controller) begin() {
	c.phase = PhaseAwaitingFirst
	c.outcome = nil
	c.startedAt = c.clock.Now()
	c.remaining = c.cfg.TimeLimit
	if c.cfg.TimeLimit > 0 {
		c.scheduleTick()
	}
}

func (c *Controller) reset(clearBest bool) {
	c.replaceBoard()
	c.stats = Stats{BestStreak: c.stats.BestStreak}
	if clearBest {
		c.best, c.hasBest = 0, false
		c.stats.BestStreak = 0
	}
	c.remaining = c.cfg.TimeLimit
	c.outcome = nil
	c.phase = PhaseIdle
	c.pushStreak()
}

// replaceBoard invalidates every outstanding callback before dealing a new
// board: the generation moves first, then each timer is stopped and the
// registry emptied.
func (c *Controller) replaceBoard() {
	c.generation++
	c.cancelTimers()
	c.tracker.Clear()
	if b, err := c.buildBoard(); err != nil {
		c.logger.Error().Err(err).Msg("rebuild board; keeping previous layout")
		for i := range c.board.Tiles {
			c.board.Tiles[i].State = Hidden
		}
	} else {
		c.board = b
	}
	c.push(Event{Kind: EventBoardReplaced})
}

func (c *Controller) buildBoard() (*Board, error) {
	switch c.cfg.Variant {
	case VariantGuess:
		return NewGuessBoard(c.src, c.cfg.Options)
	case VariantMemory:
		return NewPairBoard(c.src, c.cfg.Pairs)
	}
	return nil, fmt.Errorf("%w: unknown variant %q", ErrInvalidConfig, c.cfg.Variant)
}

// ------------------------------- countdown ---------------------------------

func (c *Controller) scheduleTick() {
	c.schedule(c.cfg.Tick, c.tick)
}

// tick decrements the remaining time; reaching zero times the round out
// whatever the matching state.
func (c *Controller) tick() {
	c.remaining -= c.cfg.Tick
	if c.remaining < 0 {
		c.remaining = 0
	}
	ms := c.remaining.Milliseconds()
	c.push(Event{Kind: EventCountdownTick, RemainingMs: &ms})
	if c.remaining == 0 {
		c.complete(context.Background(), Outcome{Kind: OutcomeTimedOut})
		return
	}
	c.scheduleTick()
}

// -------------------------------- timers -----------------------------------

// schedule registers fn to run after d under the controller lock, bound to
// the current generation.
func (c *Controller) schedule(d time.Duration, fn func()) {
	id := c.nextTimer
	c.nextTimer++
	gen := c.generation
	c.pending[id] = c.clock.AfterFunc(d, func() { c.fire(id, gen, fn) })
}

func (c *Controller) fire(id, gen uint64, fn func()) {
	c.mu.Lock()
	defer c.unlockAndEmit()
	if _, ok := c.pending[id]; !ok || gen != c.generation || c.closed {
		c.logger.Debug().Uint64("timer", id).Uint64("gen", gen).Msg("stale timer ignored")
		return
	}
	delete(c.pending, id)
	fn()
}

// cancelTimers stops every registered timer and empties the registry.
func (c *Controller) cancelTimers() {
	for id, t := range c.pending {
		t.Stop()
		delete(c.pending, id)
	}
}

// -------------------------------- events -----------------------------------

func (c *Controller) push(e Event) {
	e.Generation = c.generation
	c.events = append(c.events, e)
}

func (c *Controller) pushTile(t *Tile) {
	v := c.tileView(*t)
	c.push(Event{Kind: EventTileChanged, Tile: &v})
}

func (c *Controller) pushStreak() {
	c.push(Event{Kind: EventStreakChanged, Streak: &StreakView{
		Streak:     c.stats.Streak,
		BestStreak: c.stats.BestStreak,
	}})
}

// unlockAndEmit releases c.mu and delivers the queued events in order.
func (c *Controller) unlockAndEmit() {
	if c.delivering {
		// The draining goroutine picks these up, possibly this one from
		// inside a listener.
		c.mu.Unlock()
		return
	}
	c.delivering = true
	for len(c.events) > 0 {
		events := c.events
		c.events = nil
		ls := make([]Listener, len(c.listeners))
		for i, e := range c.listeners {
			ls[i] = e.fn
		}
		c.mu.Unlock()
		for _, e := range events {
			for _, l := range ls {
				l(e)
			}
		}
		c.mu.Lock()
	}
	c.delivering = false
	c.mu.Unlock()
}
