// Package notify delivers update batch results to a user-configured
// notification service.
package notify

import (
	"log/slog"

	"github.com/nicholas-fedor/shoutrrr"
)

// Notifier sends messages to a shoutrrr service URL. A blank URL makes
// every send a silent no-op.
type Notifier struct {
	url string
}

func New(url string) *Notifier {
	return &Notifier{url: url}
}

// Send delivers message, logging delivery failures instead of
// propagating them: notifications never fail an update batch.
func (n *Notifier) Send(message string) {
	if n == nil || n.url == "" {
		return
	}
	if err := shoutrrr.Send(n.url, message); err != nil {
		slog.Warn("Failed to send notification", "logger", "notify", "err", err)
	}
}
