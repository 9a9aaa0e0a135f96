package mot

import (
	"math"

	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/pkg/errors"
)

// TrackID is identifier of a track. Identifiers are assigned in increasing order and never reused.
type TrackID int64

// Track is a persistent identity of one person across frames.
// It is owned by TrackStore and mutated only by CentroidTracker.
type Track struct {
	id           TrackID
	centroid     Point
	box          Box
	missedFrames int
	hits         int
	firstSeen    int64
	lastSeen     int64
	side         Side
	// Last side which is not Near/Unknown
	lastDefinite Side
	history      []Point
	maxHistory   int
	predicted    Point
	dt           float64
	// Smooths centroid trend for renderers only. Association and crossing use raw centroid.
	kf *kalman_filter.Kalman2D
}

func newTrack(id TrackID, box Box, frame int64, maxHistory int, dt float64) *Track {
	center := box.Centroid()
	/* Kalman filter props */
	ux := 1.0
	uy := 1.0
	stdDevA := 2.0
	stdDevMx := 0.1
	stdDevMy := 0.1
	kf := kalman_filter.NewKalman2D(dt, ux, uy, stdDevA, stdDevMx, stdDevMy, kalman_filter.WithState2D(float64(center.X), float64(center.Y)))
	return &Track{
		id:           id,
		centroid:     center,
		box:          box,
		missedFrames: 0,
		hits:         1,
		firstSeen:    frame,
		lastSeen:     frame,
		side:         SideUnknown,
		lastDefinite: SideUnknown,
		history:      make([]Point, 0, maxHistory),
		maxHistory:   maxHistory,
		predicted:    center,
		dt:           dt,
		kf:           kf,
	}
}

// ID returns track's identifier
func (track *Track) ID() TrackID {
	return track.id
}

// Centroid returns track's current centroid
func (track *Track) Centroid() Point {
	return track.centroid
}

// Box returns last associated detection box
func (track *Track) Box() Box {
	return track.box
}

// MissedFrames returns number of consecutive frames without associated detection
func (track *Track) MissedFrames() int {
	return track.missedFrames
}

// Side returns last classified side
func (track *Track) Side() Side {
	return track.side
}

// LastDefiniteSide returns last classified side which is not Near or Unknown
func (track *Track) LastDefiniteSide() Side {
	return track.lastDefinite
}

// History returns copy of recent centroids, oldest first
func (track *Track) History() []Point {
	out := make([]Point, len(track.history))
	copy(out, track.history)
	return out
}

// Predicted returns Kalman estimate of the centroid one frame ahead
func (track *Track) Predicted() Point {
	return track.predicted
}

func (track *Track) incMissed() {
	track.missedFrames++
}

func (track *Track) setSide(side Side) {
	track.side = side
	if side.Definite() {
		track.lastDefinite = side
	}
}

// predict executes Kalman filter's first step
func (track *Track) predict() {
	track.kf.Predict()
	track.lookAhead()
}

// lookAhead extrapolates current filter state by one frame without mutating the filter
func (track *Track) lookAhead() {
	state := track.kf.GetVectorState()
	x := state.At(0, 0) + state.At(2, 0)*track.dt
	y := state.At(1, 0) + state.At(3, 0)*track.dt
	track.predicted = Point{X: int(math.Round(x)), Y: int(math.Round(y))}
}

// associate binds detection to the track
func (track *Track) associate(box Box, center Point, frame int64) error {
	track.box = box
	track.centroid = center
	track.missedFrames = 0
	track.hits++
	track.lastSeen = frame
	track.history = append(track.history, center)
	if len(track.history) > track.maxHistory {
		track.history = track.history[1:]
	}
	err := track.kf.Update(float64(center.X), float64(center.Y))
	if err != nil {
		return errors.Wrapf(err, "Can't update trend filter of track %d", track.id)
	}
	track.lookAhead()
	return nil
}

// TrackSnapshot is an immutable copy of track state after a frame update
type TrackSnapshot struct {
	ID           TrackID `json:"id"`
	Centroid     Point   `json:"centroid"`
	Box          Box     `json:"box"`
	MissedFrames int     `json:"missed_frames"`
	Hits         int     `json:"hits"`
	FirstSeen    int64   `json:"first_seen"`
	LastSeen     int64   `json:"last_seen"`
	Side         Side    `json:"side"`
	LastDefinite Side    `json:"last_definite_side"`
	History      []Point `json:"history"`
	Predicted    Point   `json:"predicted"`
}

// Snapshot copies current state of the track
func (track *Track) Snapshot() TrackSnapshot {
	return TrackSnapshot{
		ID:           track.id,
		Centroid:     track.centroid,
		Box:          track.box,
		MissedFrames: track.missedFrames,
		Hits:         track.hits,
		FirstSeen:    track.firstSeen,
		LastSeen:     track.lastSeen,
		Side:         track.side,
		LastDefinite: track.lastDefinite,
		History:      track.History(),
		Predicted:    track.predicted,
	}
}
