// Package counter glues tracker, crossing detector and alert engine into a per-frame pipeline
package counter

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/LdDl/linecount-go/alerts"
	"github.com/LdDl/linecount-go/crossing"
	"github.com/LdDl/linecount-go/mot"
)

// ErrLogWrite matches ProcessFrame errors produced by durable log failures via errors.Is.
// Counting is not affected by such errors.
var ErrLogWrite = errors.New("event log write failed")

// LogWriteError is returned by ProcessFrame when some log appends failed.
// It matches ErrLogWrite and unwraps to the first underlying failure.
type LogWriteError struct {
	Failed int
	Err    error
}

func (e *LogWriteError) Error() string {
	if e.Failed == 1 {
		return ErrLogWrite.Error() + ": " + e.Err.Error()
	}
	return fmt.Sprintf("%s: %d writes failed, first: %v", ErrLogWrite, e.Failed, e.Err)
}

// Unwrap returns the first underlying failure
func (e *LogWriteError) Unwrap() error {
	return e.Err
}

// Is reports ErrLogWrite as matching target
func (e *LogWriteError) Is(target error) bool {
	return target == ErrLogWrite
}

// Notifier receives every entry, exit and alert event after the frame is committed
type Notifier interface {
	Notify(event alerts.Event) error
}

// FrameResult is everything a single frame produced
type FrameResult struct {
	Frame     int64                   `json:"frame"`
	Tracks    []mot.TrackSnapshot     `json:"tracks"`
	Crossings []crossing.Crossing     `json:"crossings"`
	Events    []alerts.Event          `json:"events"`
	Counts    crossing.CountsSnapshot `json:"counts"`
	// Detections skipped as malformed
	Rejected int `json:"rejected"`
}

// Option customizes Counter
type Option func(*Counter)

// WithLogger sets logger
func WithLogger(logger zerolog.Logger) Option {
	return func(counter *Counter) {
		counter.logger = logger
	}
}

// WithNotifiers adds event consumers
func WithNotifiers(notifiers ...Notifier) Option {
	return func(counter *Counter) {
		for _, notifier := range notifiers {
			if notifier != nil {
				counter.notifiers = append(counter.notifiers, notifier)
			}
		}
	}
}

// WithRecheckInterval sets period of alert re-evaluation in Run
func WithRecheckInterval(interval time.Duration) Option {
	return func(counter *Counter) {
		counter.interval = interval
	}
}

// Counter owns tracker and counts. Frames are processed sequentially while
// readers (HTTP API, re-check loop) observe only committed frames.
type Counter struct {
	mu        sync.RWMutex
	tracker   *mot.CentroidTracker
	detector  *crossing.Detector
	counts    *crossing.Counts
	engine    *alerts.Engine
	tracks    map[mot.TrackID]mot.TrackSnapshot
	notifiers []Notifier
	interval  time.Duration
	logger    zerolog.Logger
}

// New creates pipeline from already validated components
func New(tracker *mot.CentroidTracker, detector *crossing.Detector, engine *alerts.Engine, options ...Option) (*Counter, error) {
	if tracker == nil || detector == nil || engine == nil {
		return nil, errors.New("tracker, detector and engine are required")
	}
	counter := &Counter{
		tracker:  tracker,
		detector: detector,
		counts:   crossing.NewCounts(),
		engine:   engine,
		tracks:   make(map[mot.TrackID]mot.TrackSnapshot),
		interval: time.Second,
		logger:   zerolog.Nop(),
	}
	for _, option := range options {
		option(counter)
	}
	if counter.interval <= 0 {
		return nil, errors.Errorf("recheck interval must be positive, got %s", counter.interval)
	}
	return counter, nil
}

// ProcessFrame runs a single frame of detections through the pipeline.
// Returned result is complete even when error is not nil: errors only report lost log rows.
func (counter *Counter) ProcessFrame(detections []mot.Box) (FrameResult, error) {
	counter.mu.Lock()
	snapshots := counter.tracker.Update(detections)
	result := FrameResult{
		Frame:    counter.tracker.Frame(),
		Rejected: counter.tracker.LastRejected(),
	}
	result.Crossings = counter.detector.Detect(snapshots, counter.tracker)
	// Re-read so stored sides are visible to readers
	counter.tracks = counter.tracker.Store().Snapshot()

	var logErrs []error
	for _, cross := range result.Crossings {
		counter.counts.Apply(cross.Direction)
		var event alerts.Event
		var err error
		if cross.Direction == crossing.DirectionEntry {
			event, err = counter.engine.RecordEntry()
		} else {
			event, err = counter.engine.RecordExit()
		}
		if err != nil {
			logErrs = append(logErrs, err)
		}
		result.Events = append(result.Events, event)
		counter.logger.Info().
			Int64("frame", result.Frame).
			Int64("track_id", int64(cross.TrackID)).
			Str("direction", cross.Direction.String()).
			Msg("Line crossed")
	}
	result.Counts = counter.counts.Snapshot()
	result.Tracks = sortedTracks(counter.tracks)

	alertEvents, alertErrs := counter.checkAlerts(result.Counts.Occupancy)
	result.Events = append(result.Events, alertEvents...)
	logErrs = append(logErrs, alertErrs...)
	counter.mu.Unlock()

	counter.notify(result.Events)
	return result, joinLogErrors(logErrs)
}

// Run re-evaluates alerts every recheck interval until ctx is done.
// Cooldowns may expire between frames, so alerts are not only checked on crossings.
func (counter *Counter) Run(ctx context.Context) error {
	ticker := time.NewTicker(counter.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			events, errs := counter.Recheck()
			for _, err := range errs {
				counter.logger.Error().Err(err).Msg("Can't log alert")
			}
			counter.notify(events)
		}
	}
}

// Recheck evaluates burst and occupancy alerts against current state.
// It does not notify; Run does.
//
// Read lock is held while alerts are checked, so a concurrent ProcessFrame can not
// commit a newer occupancy in between and have its alert evaluated against a stale one.
// Lock order is counter then engine, same as in ProcessFrame.
func (counter *Counter) Recheck() ([]alerts.Event, []error) {
	counter.mu.RLock()
	defer counter.mu.RUnlock()
	return counter.checkAlerts(counter.counts.Occupancy())
}

func (counter *Counter) checkAlerts(occupancy int) ([]alerts.Event, []error) {
	var events []alerts.Event
	var errs []error
	burst, err := counter.engine.CheckBurst()
	if err != nil {
		errs = append(errs, err)
	}
	if burst.Fired {
		events = append(events, *burst.Alert)
	}
	occ, err := counter.engine.CheckOccupancy(occupancy)
	if err != nil {
		errs = append(errs, err)
	}
	if occ.Fired {
		events = append(events, *occ.Alert)
	}
	return events, errs
}

func (counter *Counter) notify(events []alerts.Event) {
	for _, event := range events {
		for _, notifier := range counter.notifiers {
			if err := notifier.Notify(event); err != nil {
				counter.logger.Warn().Err(err).Str("event_id", event.ID.String()).Msg("Can't notify")
			}
		}
	}
}

// Counts returns committed counters
func (counter *Counter) Counts() crossing.CountsSnapshot {
	counter.mu.RLock()
	defer counter.mu.RUnlock()
	return counter.counts.Snapshot()
}

// Tracks returns tracks of the last committed frame in ascending id order
func (counter *Counter) Tracks() []mot.TrackSnapshot {
	counter.mu.RLock()
	defer counter.mu.RUnlock()
	return sortedTracks(counter.tracks)
}

// Frame returns number of the last committed frame
func (counter *Counter) Frame() int64 {
	counter.mu.RLock()
	defer counter.mu.RUnlock()
	return counter.tracker.Frame()
}

// RecentAlerts returns up to n latest alerts
func (counter *Counter) RecentAlerts(n int) []alerts.Event {
	return counter.engine.Recent(n)
}

// AlertStats returns alert engine state
func (counter *Counter) AlertStats() alerts.Stats {
	return counter.engine.Stats()
}

// Line returns counting line
func (counter *Counter) Line() crossing.Line {
	return counter.detector.Line()
}

func sortedTracks(tracks map[mot.TrackID]mot.TrackSnapshot) []mot.TrackSnapshot {
	out := make([]mot.TrackSnapshot, 0, len(tracks))
	for _, track := range tracks {
		out = append(out, track)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func joinLogErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return &LogWriteError{Failed: len(errs), Err: errs[0]}
}
