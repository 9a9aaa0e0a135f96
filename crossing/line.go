// Package crossing decides when a tracked person crosses the counting line
// and keeps cumulative entry/exit counts.
package crossing

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/LdDl/linecount-go/mot"
)

// ErrInvalidLine is returned for bad line configuration
var ErrInvalidLine = errors.New("invalid line configuration")

// Orientation of the counting line
type Orientation uint8

const (
	// Horizontal line is checked against centroid's Y
	Horizontal Orientation = iota
	// Vertical line is checked against centroid's X
	Vertical
)

func (o Orientation) String() string {
	if o == Vertical {
		return "vertical"
	}
	return "horizontal"
}

// ParseOrientation converts text representation into Orientation
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "horizontal", "h":
		return Horizontal, nil
	case "vertical", "v":
		return Vertical, nil
	default:
		return Horizontal, fmt.Errorf("unknown line orientation %q", s)
	}
}

// Line is a virtual counting line with a hysteresis band around it
type Line struct {
	Orientation Orientation
	// Pixel coordinate of the line on the applicable axis
	Position int
	// Half-width of the dead-zone around the line
	Hysteresis int
	// When set, transitions are evaluated against the last side outside of the dead-zone,
	// so walking through the band slowly still counts once.
	Latch bool
}

// DefaultLine returns horizontal line at y=300 with 10px band
func DefaultLine() Line {
	return Line{
		Orientation: Horizontal,
		Position:    300,
		Hysteresis:  10,
	}
}

// Validate checks line parameters
func (line Line) Validate() error {
	switch line.Orientation {
	case Horizontal, Vertical:
	default:
		return errors.Wrapf(ErrInvalidLine, "unknown orientation %d", line.Orientation)
	}
	if line.Position < 0 {
		return errors.Wrapf(ErrInvalidLine, "position must not be negative, got %d", line.Position)
	}
	if line.Hysteresis < 0 {
		return errors.Wrapf(ErrInvalidLine, "hysteresis must not be negative, got %d", line.Hysteresis)
	}
	return nil
}

// Classify returns side of the line the point belongs to
func (line Line) Classify(p mot.Point) mot.Side {
	if line.Orientation == Vertical {
		switch {
		case p.X < line.Position-line.Hysteresis:
			return mot.SideLeft
		case p.X > line.Position+line.Hysteresis:
			return mot.SideRight
		default:
			return mot.SideNear
		}
	}
	switch {
	case p.Y < line.Position-line.Hysteresis:
		return mot.SideAbove
	case p.Y > line.Position+line.Hysteresis:
		return mot.SideBelow
	default:
		return mot.SideNear
	}
}
