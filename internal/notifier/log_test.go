package notifier

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"jobnorm/internal/model"
)

func TestLogNotifier_NotifyRun_returnsNil(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	n := NewLogNotifier(logger)
	summary := model.RunSummary{
		Pipeline:  "jobs_de",
		Fetched:   120,
		Canonical: 98,
		Inserted:  80,
		Updated:   18,
		StartedAt: time.Now(),
		Duration:  3 * time.Second,
	}
	if err := n.NotifyRun(summary); err != nil {
		t.Errorf("NotifyRun() = %v, want nil", err)
	}
}

func TestLogNotifier_NotifyRun_zeroValue(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	n := NewLogNotifier(logger)
	if err := n.NotifyRun(model.RunSummary{}); err != nil {
		t.Errorf("NotifyRun(zero) = %v, want nil", err)
	}
}
