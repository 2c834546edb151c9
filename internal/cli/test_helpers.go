package cli

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"sprintgate/internal/audit"
	"sprintgate/internal/clock"
	"sprintgate/internal/config"
	"sprintgate/internal/output"
	"sprintgate/internal/workitem"
)

// FailingAuditor is an audit writer whose writes always fail.
type FailingAuditor struct {
	// Records holds every record it was asked to persist.
	Records []audit.Record
}

func (f *FailingAuditor) Persist(rec audit.Record) (string, error) {
	f.Records = append(f.Records, rec)
	return "", errors.New("read-only file system")
}

// newTestApp builds an App whose state lives under a temporary directory.
// The adapter serves items for every sprint.
func newTestApp(t *testing.T, items []workitem.WorkItem) (*App, *workitem.MockAdapter, *bytes.Buffer) {
	t.Helper()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Review.StateDir = filepath.Join(dir, "state")
	cfg.Review.AuditDir = filepath.Join(dir, "audit")
	cfg.Review.ReportsDir = filepath.Join(dir, "reports")
	cfg.Review.TestReportsDir = filepath.Join(dir, "test-reports")

	adapter := &workitem.MockAdapter{Items: items}
	buf := &bytes.Buffer{}

	app := &App{
		Config:  cfg,
		Adapter: adapter,
		Auditor: audit.NewLogger(cfg.Review.AuditDir, nil),
		Printer: output.NewPrinterWithWriter(buf),
		Clock:   clock.Real{},
	}
	return app, adapter, buf
}

// doneItems returns n done tasks, the first of them an epic.
func doneItems(n int) []workitem.WorkItem {
	items := make([]workitem.WorkItem, n)
	for i := range items {
		items[i] = workitem.WorkItem{
			ID:    fmt.Sprint(100 + i),
			Type:  "Task",
			State: "Done",
			Title: fmt.Sprintf("Item %d", i),
		}
	}
	if n > 0 {
		items[0].Type = "Epic"
	}
	return items
}
