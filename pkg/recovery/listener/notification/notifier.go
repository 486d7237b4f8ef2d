// Package notification provides the Notifier adaptor. The logging implementation
// writes each published event to the application log, which is enough for drills and
// local runs; real channels (mail, chat, webhooks) plug in behind the same port.
package notification

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tigerroll/tidal/pkg/recovery/core/ports"
	"github.com/tigerroll/tidal/pkg/recovery/support/util/logger"
)

// LoggingNotifier is a Notifier implementation that only logs notifications.
type LoggingNotifier struct{}

// NewLoggingNotifier creates a new instance of LoggingNotifier.
func NewLoggingNotifier() ports.Notifier {
	logger.Infof("Notification: Initializing logging notifier.")
	return &LoggingNotifier{}
}

// Publish logs the event with its payload. It never returns an error: publishing is
// fire-and-forget and must not block orchestration.
func (n *LoggingNotifier) Publish(ctx context.Context, event ports.NotificationEvent, payload map[string]string) {
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, payload[key]))
	}
	message := fmt.Sprintf("Notification: %s [%s]", event, strings.Join(pairs, ", "))

	switch event {
	case ports.EventExecutionFailed:
		logger.Warnf(message)
	default:
		logger.Infof(message)
	}
}

var _ ports.Notifier = (*LoggingNotifier)(nil)
