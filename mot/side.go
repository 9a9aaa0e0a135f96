package mot

// Side is the last classified position of a track relative to the counting line.
// Above/Below are used for horizontal lines, Left/Right for vertical ones.
type Side uint8

const (
	// SideUnknown is the side of a freshly created track
	SideUnknown Side = iota
	SideAbove
	SideBelow
	SideLeft
	SideRight
	// SideNear is the hysteresis dead-zone around the line
	SideNear
)

func (s Side) String() string {
	switch s {
	case SideAbove:
		return "above"
	case SideBelow:
		return "below"
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	case SideNear:
		return "near"
	default:
		return "unknown"
	}
}

// Definite reports whether side is one of the four sides that can take part in a crossing
func (s Side) Definite() bool {
	switch s {
	case SideAbove, SideBelow, SideLeft, SideRight:
		return true
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler
func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unrecognized text yields SideUnknown.
func (s *Side) UnmarshalText(text []byte) error {
	switch string(text) {
	case "above":
		*s = SideAbove
	case "below":
		*s = SideBelow
	case "left":
		*s = SideLeft
	case "right":
		*s = SideRight
	case "near":
		*s = SideNear
	default:
		*s = SideUnknown
	}
	return nil
}
