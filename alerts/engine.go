package alerts

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// CooldownKey identifies an alert kind for rate limiting
type CooldownKey string

const (
	CooldownBurst     CooldownKey = "burst"
	CooldownOccupancy CooldownKey = "occupancy"
)

// SnapshotFunc receives every fired alert. It is the hand-off point for
// collaborators which capture a visual snapshot keyed by alert timestamp.
type SnapshotFunc func(alert Event)

// BurstResult is outcome of CheckBurst
type BurstResult struct {
	Fired bool
	// Entries inside the window, reported even when alert is not fired
	Count int
	Alert *Event
}

// OccupancyResult is outcome of CheckOccupancy
type OccupancyResult struct {
	Fired     bool
	Occupancy int
	Alert     *Event
}

// Stats describes engine state for observability
type Stats struct {
	EntriesInWindow int                       `json:"entries_in_window"`
	ExitsInWindow   int                       `json:"exits_in_window"`
	LastFired       map[CooldownKey]time.Time `json:"last_fired"`
}

// Option customizes Engine
type Option func(*Engine)

// WithClock sets timestamp source
func WithClock(clock Clock) Option {
	return func(engine *Engine) {
		engine.clock = clock
	}
}

// WithLogger sets logger
func WithLogger(logger zerolog.Logger) Option {
	return func(engine *Engine) {
		engine.logger = logger
	}
}

// WithSnapshotFunc sets alert snapshot hand-off
func WithSnapshotFunc(fn SnapshotFunc) Option {
	return func(engine *Engine) {
		engine.snapshot = fn
	}
}

// WithSession sets session identifier stamped on every event
func WithSession(session uuid.UUID) Option {
	return func(engine *Engine) {
		engine.session = session
	}
}

// Engine records entries/exits and evaluates burst and occupancy alerts.
//
// A single mutex guards both event queues, the cooldown map and the log append,
// so a prune-then-check sequence is never observed half-updated by a concurrent recorder.
type Engine struct {
	mu         sync.Mutex
	cfg        Config
	clock      Clock
	lastNow    time.Time
	entryTimes []time.Time
	exitTimes  []time.Time
	lastFired  map[CooldownKey]time.Time
	recent     []Event
	log        Log
	session    uuid.UUID
	snapshot   SnapshotFunc
	logger     zerolog.Logger
}

// NewEngine creates alert engine writing to the given log. Nil log disables persistence.
func NewEngine(cfg Config, log Log, options ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = NopLog{}
	}
	engine := &Engine{
		cfg:        cfg,
		clock:      SystemClock{},
		entryTimes: make([]time.Time, 0, cfg.BurstThreshold),
		exitTimes:  make([]time.Time, 0, cfg.BurstThreshold),
		lastFired:  make(map[CooldownKey]time.Time),
		recent:     make([]Event, 0, cfg.RecentLimit),
		log:        log,
		session:    uuid.New(),
		logger:     zerolog.Nop(),
	}
	for _, option := range options {
		option(engine)
	}
	return engine, nil
}

// Config returns engine thresholds
func (engine *Engine) Config() Config {
	return engine.cfg
}

// Session returns session identifier
func (engine *Engine) Session() uuid.UUID {
	return engine.session
}

// RecordEntry registers an entry and writes ENTRY row to the log.
// Returned error is about the log only: the entry is counted anyway.
func (engine *Engine) RecordEntry() (Event, error) {
	return engine.record(KindEntry, "Entry detected")
}

// RecordExit registers an exit and writes EXIT row to the log.
// Returned error is about the log only: the exit is counted anyway.
func (engine *Engine) RecordExit() (Event, error) {
	return engine.record(KindExit, "Exit detected")
}

func (engine *Engine) record(kind Kind, message string) (Event, error) {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	now := engine.now()
	if kind == KindEntry {
		engine.entryTimes = append(engine.entryTimes, now)
	} else {
		engine.exitTimes = append(engine.exitTimes, now)
	}
	// Keep memory bounded even if nobody checks alerts
	engine.entryTimes = pruneWindow(engine.entryTimes, now, engine.cfg.BurstWindow)
	engine.exitTimes = pruneWindow(engine.exitTimes, now, engine.cfg.BurstWindow)

	event := newEvent(engine.session, now, kind, message, 0)
	if err := engine.log.Append(event); err != nil {
		return event, errors.Wrapf(err, "Can't log %s", kind)
	}
	return event, nil
}

// CheckBurst fires burst alert when at least BurstThreshold entries happened within BurstWindow
// and burst cooldown has elapsed.
func (engine *Engine) CheckBurst() (BurstResult, error) {
	engine.mu.Lock()
	now := engine.now()
	engine.entryTimes = pruneWindow(engine.entryTimes, now, engine.cfg.BurstWindow)
	count := len(engine.entryTimes)
	result := BurstResult{Count: count}
	if count < engine.cfg.BurstThreshold || !engine.cooldownElapsed(CooldownBurst, now) {
		engine.mu.Unlock()
		return result, nil
	}
	message := fmt.Sprintf("BURST ALERT: %d entries in last %ds", count, int(engine.cfg.BurstWindow.Seconds()))
	alert, err := engine.trigger(CooldownBurst, now, KindBurstAlert, message, count)
	engine.mu.Unlock()

	engine.afterTrigger(alert)
	result.Fired = true
	result.Alert = &alert
	return result, err
}

// CheckOccupancy fires occupancy alert when occupancy is above OccupancyLimit
// and occupancy cooldown has elapsed.
func (engine *Engine) CheckOccupancy(occupancy int) (OccupancyResult, error) {
	result := OccupancyResult{Occupancy: occupancy}
	engine.mu.Lock()
	now := engine.now()
	if occupancy <= engine.cfg.OccupancyLimit || !engine.cooldownElapsed(CooldownOccupancy, now) {
		engine.mu.Unlock()
		return result, nil
	}
	message := fmt.Sprintf("OCCUPANCY ALERT: occupancy %d > limit %d", occupancy, engine.cfg.OccupancyLimit)
	alert, err := engine.trigger(CooldownOccupancy, now, KindOccupancyAlert, message, occupancy)
	engine.mu.Unlock()

	engine.afterTrigger(alert)
	result.Fired = true
	result.Alert = &alert
	return result, err
}

// Stats returns queue sizes and last firing times
func (engine *Engine) Stats() Stats {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	lastFired := make(map[CooldownKey]time.Time, len(engine.lastFired))
	for k, v := range engine.lastFired {
		lastFired[k] = v
	}
	return Stats{
		EntriesInWindow: len(engine.entryTimes),
		ExitsInWindow:   len(engine.exitTimes),
		LastFired:       lastFired,
	}
}

// Recent returns up to n most recent alerts, newest last. Non-positive n returns all kept alerts.
func (engine *Engine) Recent(n int) []Event {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	if n <= 0 || n > len(engine.recent) {
		n = len(engine.recent)
	}
	out := make([]Event, n)
	copy(out, engine.recent[len(engine.recent)-n:])
	return out
}

// Close closes the log
func (engine *Engine) Close() error {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	return engine.log.Close()
}

// now returns clock time clamped so it never goes backwards. Must be called with mu held.
func (engine *Engine) now() time.Time {
	now := engine.clock.Now()
	if now.Before(engine.lastNow) {
		engine.logger.Debug().
			Time("clock", now).
			Time("last", engine.lastNow).
			Msg("Clock went backwards, clamping")
		return engine.lastNow
	}
	engine.lastNow = now
	return now
}

// cooldownElapsed must be called with mu held. Checking does not reset the clock.
func (engine *Engine) cooldownElapsed(key CooldownKey, now time.Time) bool {
	last, ok := engine.lastFired[key]
	if !ok {
		return true
	}
	return now.Sub(last) >= engine.cfg.Cooldown
}

// trigger must be called with mu held
func (engine *Engine) trigger(key CooldownKey, now time.Time, kind Kind, message string, count int) (Event, error) {
	engine.lastFired[key] = now
	alert := newEvent(engine.session, now, kind, message, count)
	engine.recent = append(engine.recent, alert)
	if len(engine.recent) > engine.cfg.RecentLimit {
		engine.recent = engine.recent[len(engine.recent)-engine.cfg.RecentLimit:]
	}
	if err := engine.log.Append(alert); err != nil {
		return alert, errors.Wrapf(err, "Can't log %s", kind)
	}
	return alert, nil
}

// afterTrigger runs outside of mu: hand-off may be slow
func (engine *Engine) afterTrigger(alert Event) {
	engine.logger.Warn().
		Str("kind", alert.Kind.String()).
		Int("count", alert.Count).
		Str("alert_id", alert.ID.String()).
		Msg(alert.Message)
	if engine.snapshot != nil {
		engine.snapshot(alert)
	}
}

// pruneWindow drops timestamps older than now-window from the front of time-ordered queue
func pruneWindow(queue []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	i := 0
	for i < len(queue) && queue[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return queue
	}
	return queue[i:]
}
