// Package notifier pushes trade and system events to a text channel.
// The interface is intentionally small so components can depend on it
// without importing concrete implementations.
package notifier

type TextNotifier interface {
	SendText(text string) error
}

// Notifier renders structured events and forwards them.
type Notifier struct {
	sink TextNotifier
}

func New(sink TextNotifier) *Notifier {
	return &Notifier{sink: sink}
}

// Publish formats and sends the event. A nil sink drops silently so
// notification stays optional in config.
func (n *Notifier) Publish(e Event) error {
	if n == nil || n.sink == nil {
		return nil
	}
	return n.sink.SendText(e.Render())
}
