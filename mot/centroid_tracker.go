package mot

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ErrInvalidConfig is returned when tracker is constructed with bad parameters
var ErrInvalidConfig = errors.New("invalid tracker configuration")

// TrackerConfig holds parameters of CentroidTracker
type TrackerConfig struct {
	// Max distance (in pixels) between centroids to be considered the same person. Default 80
	MaxDistance float64
	// Max number of consecutive frames track could be missing before deletion. Default 10
	MaxMissed int
	// Capacity of centroid history per track. Default 8
	HistoryLen int
	// Detection to track assignment algorithm. Default is AssignmentGreedy
	Assignment AssignmentPolicy
	// Time step of trend filter in frames. Default 1
	Dt float64
}

// DefaultTrackerConfig returns default parameters
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		MaxDistance: 80.0,
		MaxMissed:   10,
		HistoryLen:  8,
		Assignment:  AssignmentGreedy,
		Dt:          1.0,
	}
}

// Validate checks that every threshold is positive
func (cfg TrackerConfig) Validate() error {
	if cfg.MaxDistance <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "max distance must be positive, got %v", cfg.MaxDistance)
	}
	if cfg.MaxMissed <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "max missed frames must be positive, got %d", cfg.MaxMissed)
	}
	if cfg.HistoryLen <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "history length must be positive, got %d", cfg.HistoryLen)
	}
	if cfg.Dt <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "dt must be positive, got %v", cfg.Dt)
	}
	switch cfg.Assignment {
	case AssignmentGreedy, AssignmentOptimal:
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown assignment policy %d", cfg.Assignment)
	}
	return nil
}

// TrackerOption customizes CentroidTracker
type TrackerOption func(*CentroidTracker)

// WithLogger sets logger for rejected detections and filter failures
func WithLogger(logger zerolog.Logger) TrackerOption {
	return func(tracker *CentroidTracker) {
		tracker.logger = logger
	}
}

// CentroidTracker associates detections of every frame with persistent tracks
// by centroid distance. It is the only writer of its TrackStore.
// Not safe for concurrent use: Update must be called once per frame, in frame order.
type CentroidTracker struct {
	// Main storage
	store  *TrackStore
	cfg    TrackerConfig
	nextID TrackID
	frame  int64
	// Number of detections rejected during last Update
	lastRejected int
	logger       zerolog.Logger
}

// NewCentroidTrackerDefault creates default instance of CentroidTracker
func NewCentroidTrackerDefault() *CentroidTracker {
	tracker, err := NewCentroidTracker(DefaultTrackerConfig())
	if err != nil {
		panic("default tracker configuration must be valid: " + err.Error())
	}
	return tracker
}

// NewCentroidTracker creates new instance of CentroidTracker
func NewCentroidTracker(cfg TrackerConfig, options ...TrackerOption) (*CentroidTracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tracker := &CentroidTracker{
		store:  NewTrackStore(),
		cfg:    cfg,
		nextID: 1,
		logger: zerolog.Nop(),
	}
	for _, option := range options {
		option(tracker)
	}
	return tracker, nil
}

// Config returns tracker parameters
func (tracker *CentroidTracker) Config() TrackerConfig {
	return tracker.cfg
}

// Store returns underlying track storage
func (tracker *CentroidTracker) Store() *TrackStore {
	return tracker.store
}

// Frame returns number of processed frames
func (tracker *CentroidTracker) Frame() int64 {
	return tracker.frame
}

// LastRejected returns number of malformed detections skipped during last Update
func (tracker *CentroidTracker) LastRejected() int {
	return tracker.lastRejected
}

// SetSide stores classified side on the track. Returns false if track is not alive.
func (tracker *CentroidTracker) SetSide(id TrackID, side Side) bool {
	track, ok := tracker.store.Get(id)
	if !ok {
		return false
	}
	track.setSide(side)
	return true
}

// Update matches detections of the next frame with live tracks and returns state of every live track.
func (tracker *CentroidTracker) Update(detections []Box) map[TrackID]TrackSnapshot {
	tracker.frame++
	tracks := tracker.store.ordered()

	// Age every track unconditionally
	for _, track := range tracks {
		track.incMissed()
		track.predict()
	}

	centers := make([]Point, len(detections))
	valid := make([]bool, len(detections))
	tracker.lastRejected = 0
	for i, det := range detections {
		if err := det.Validate(); err != nil {
			tracker.lastRejected++
			tracker.logger.Warn().
				Err(err).
				Int64("frame", tracker.frame).
				Int("detection", i).
				Msg("Skipping malformed detection")
			continue
		}
		centers[i] = det.Centroid()
		valid[i] = true
	}

	var matches map[int]*Track
	switch tracker.cfg.Assignment {
	case AssignmentOptimal:
		matches = assignOptimal(tracks, centers, valid, tracker.cfg.MaxDistance)
	default:
		matches = assignGreedy(tracks, centers, valid, tracker.cfg.MaxDistance)
	}

	for i := range detections {
		if !valid[i] {
			continue
		}
		if track, ok := matches[i]; ok {
			err := track.associate(detections[i], centers[i], tracker.frame)
			if err != nil {
				// Trend filter is for display only; association itself is done
				tracker.logger.Warn().Err(err).Int64("track_id", int64(track.id)).Msg("Trend filter update failed")
			}
			continue
		}
		// Register detection as a new track
		track := newTrack(tracker.nextID, detections[i], tracker.frame, tracker.cfg.HistoryLen, tracker.cfg.Dt)
		tracker.nextID++
		tracker.store.insert(track)
	}

	// Remove tracks which were not found for a long time
	for _, track := range tracks {
		if track.missedFrames > tracker.cfg.MaxMissed {
			tracker.store.delete(track.id)
		}
	}
	return tracker.store.Snapshot()
}
