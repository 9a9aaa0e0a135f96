package crossing

import (
	"sort"

	"github.com/LdDl/linecount-go/mot"
)

// Direction of a crossing
type Direction uint8

const (
	// DirectionNone means no crossing happened
	DirectionNone Direction = iota
	// DirectionEntry is below→above (horizontal) or right→left (vertical)
	DirectionEntry
	// DirectionExit is above→below (horizontal) or left→right (vertical)
	DirectionExit
)

func (d Direction) String() string {
	switch d {
	case DirectionEntry:
		return "entry"
	case DirectionExit:
		return "exit"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// transition is the whole crossing policy. Only a direct move between the two
// opposite definite sides counts. Any pair with Near or Unknown yields nothing.
func transition(from, to mot.Side) Direction {
	switch {
	case from == mot.SideAbove && to == mot.SideBelow:
		return DirectionExit
	case from == mot.SideBelow && to == mot.SideAbove:
		return DirectionEntry
	case from == mot.SideLeft && to == mot.SideRight:
		return DirectionExit
	case from == mot.SideRight && to == mot.SideLeft:
		return DirectionEntry
	default:
		return DirectionNone
	}
}

// Crossing is a line crossing of a single track during a frame
type Crossing struct {
	TrackID   mot.TrackID `json:"track_id"`
	Direction Direction   `json:"direction"`
	From      mot.Side    `json:"from"`
	To        mot.Side    `json:"to"`
	Centroid  mot.Point   `json:"centroid"`
}

// SideWriter persists classified side on a track. Implemented by *mot.CentroidTracker.
type SideWriter interface {
	SetSide(id mot.TrackID, side mot.Side) bool
}

// Detector classifies tracks against the counting line
type Detector struct {
	line Line
}

// NewDetector creates detector for the given line
func NewDetector(line Line) (*Detector, error) {
	if err := line.Validate(); err != nil {
		return nil, err
	}
	return &Detector{line: line}, nil
}

// Line returns counting line
func (detector *Detector) Line() Line {
	return detector.line
}

// Detect classifies every track, stores the new side through writer and returns crossings
// in ascending track id order.
func (detector *Detector) Detect(tracks map[mot.TrackID]mot.TrackSnapshot, writer SideWriter) []Crossing {
	ids := make([]mot.TrackID, 0, len(tracks))
	for id := range tracks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	crossings := make([]Crossing, 0)
	for _, id := range ids {
		track := tracks[id]
		side := detector.line.Classify(track.Centroid)
		previous := track.Side
		if detector.line.Latch {
			previous = track.LastDefinite
		}
		writer.SetSide(id, side)
		direction := transition(previous, side)
		if direction == DirectionNone {
			continue
		}
		crossings = append(crossings, Crossing{
			TrackID:   id,
			Direction: direction,
			From:      previous,
			To:        side,
			Centroid:  track.Centroid,
		})
	}
	return crossings
}
