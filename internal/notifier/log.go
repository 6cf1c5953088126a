package notifier

import (
	"log/slog"

	"jobnorm/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes run summaries to the given logger as structured messages.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each run summary via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// NotifyRun logs the run outcome. Returns nil (stdout logging does not fail).
func (n *LogNotifier) NotifyRun(summary model.RunSummary) error {
	n.logger.Info("run finished",
		"pipeline", summary.Pipeline,
		"fetched", summary.Fetched,
		"canonical", summary.Canonical,
		"inserted", summary.Inserted,
		"updated", summary.Updated,
		"started_at", summary.StartedAt,
		"duration", summary.Duration,
	)
	return nil
}
