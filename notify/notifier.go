package notify

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/LdDl/linecount-go/alerts"
)

// Publisher sends payload to a subject. Implemented by *Service.
type Publisher interface {
	Publish(subject string, data interface{}) error
}

// EventNotifier publishes every event to "<prefix>.events.<kind>"
type EventNotifier struct {
	publisher Publisher
	prefix    string
}

// NewEventNotifier creates notifier. Empty prefix publishes to "events.<kind>".
func NewEventNotifier(publisher Publisher, prefix string) *EventNotifier {
	return &EventNotifier{
		publisher: publisher,
		prefix:    strings.TrimSuffix(prefix, "."),
	}
}

// Subject returns subject for the given event kind
func (notifier *EventNotifier) Subject(kind alerts.Kind) string {
	if notifier.prefix == "" {
		return "events." + kind.String()
	}
	return notifier.prefix + ".events." + kind.String()
}

// Notify publishes event
func (notifier *EventNotifier) Notify(event alerts.Event) error {
	subject := notifier.Subject(event.Kind)
	if err := notifier.publisher.Publish(subject, event); err != nil {
		return errors.Wrapf(err, "Can't publish to '%s'", subject)
	}
	return nil
}
