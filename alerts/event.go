// Package alerts evaluates entry bursts and occupancy breaches with per-kind cooldowns
// and writes every entry, exit and alert to a durable audit log.
package alerts

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind of event
type Kind uint8

const (
	KindEntry Kind = iota + 1
	KindExit
	KindBurstAlert
	KindOccupancyAlert
)

func (kind Kind) String() string {
	switch kind {
	case KindEntry:
		return "entry"
	case KindExit:
		return "exit"
	case KindBurstAlert:
		return "burst_alert"
	case KindOccupancyAlert:
		return "occupancy_alert"
	default:
		return "unknown"
	}
}

// LogType returns value of "Type" column in the audit log
func (kind Kind) LogType() string {
	switch kind {
	case KindEntry:
		return "ENTRY"
	case KindExit:
		return "EXIT"
	default:
		return "ALERT"
	}
}

// IsAlert reports whether kind is a terminal alert (burst or occupancy)
func (kind Kind) IsAlert() bool {
	return kind == KindBurstAlert || kind == KindOccupancyAlert
}

// MarshalText implements encoding.TextMarshaler
func (kind Kind) MarshalText() ([]byte, error) {
	return []byte(kind.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (kind *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*kind = parsed
	return nil
}

// ParseKind converts text representation into Kind
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "entry":
		return KindEntry, nil
	case "exit":
		return KindExit, nil
	case "burst_alert":
		return KindBurstAlert, nil
	case "occupancy_alert":
		return KindOccupancyAlert, nil
	default:
		return 0, fmt.Errorf("unknown event kind %q", s)
	}
}

// Event is an immutable record of an entry, exit or alert
type Event struct {
	ID        uuid.UUID `json:"id"`
	Session   uuid.UUID `json:"session"`
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	// Entries in window for burst alerts, occupancy for occupancy alerts
	Count int `json:"count,omitempty"`
}

func newEvent(session uuid.UUID, ts time.Time, kind Kind, message string, count int) Event {
	return Event{
		ID:        uuid.New(),
		Session:   session,
		Timestamp: ts,
		Kind:      kind,
		Message:   message,
		Count:     count,
	}
}
