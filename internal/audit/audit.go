// Package audit persists the durable record of each review run.
//
// Every run writes exactly one JSON record, whatever its outcome. The record
// is the compliance evidence that every step was verified by the executor
// rather than claimed by an agent, so write failures are always returned to
// the caller.
//
// Key types:
//   - [Record] - The persisted projection of a finished run
//   - [Logger] - Writes records into the audit directory
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"sprintgate/internal/evidence"
	"sprintgate/internal/pipeline"
)

// Workflow names the enforced sprint review in every record.
const Workflow = "sprint-review-enforced"

// Enforcement annotation values.
const (
	ModeExternal    = "external"
	Guarantee       = "All steps verified externally - AI cannot skip or bypass"
	GateBlocking    = "blocking"
	GateNotReached  = "not_reached"
	timestampLayout = "20060102-150405"
)

// ErrNoRecords is returned by [List] when the directory holds no records.
var ErrNoRecords = errors.New("no audit records found")

// Enforcement describes how the run was enforced.
type Enforcement struct {
	Mode         string `json:"mode"`
	Guarantee    string `json:"guarantee"`
	ApprovalGate string `json:"approval_gate"`
}

// Record is the persisted form of one run.
type Record struct {
	Workflow        string            `json:"workflow"`
	RunID           string            `json:"run_id"`
	Sprint          string            `json:"sprint"`
	Status          string            `json:"status"`
	StartTime       time.Time         `json:"start_time"`
	EndTime         time.Time         `json:"end_time"`
	DurationSeconds float64           `json:"duration_seconds"`
	StepsCompleted  []pipeline.StepID `json:"steps_completed"`
	StepEvidence    json.RawMessage   `json:"step_evidence"`
	Enforcement     Enforcement       `json:"enforcement"`
	Error           string            `json:"error,omitempty"`
	PartialClosure  *evidence.Closure `json:"partial_closure,omitempty"`
}

// NewRecord projects a finished run onto a Record. The gate annotation is
// "blocking" once the approval step holds evidence.
func NewRecord(runID, sprint, status string, start, end time.Time, store *evidence.Store) (Record, error) {
	data, err := json.Marshal(store)
	if err != nil {
		return Record{}, fmt.Errorf("failed to encode step evidence: %w", err)
	}

	gate := GateNotReached
	if store.Has(pipeline.StepApproval) {
		gate = GateBlocking
	}

	return Record{
		Workflow:        Workflow,
		RunID:           runID,
		Sprint:          sprint,
		Status:          status,
		StartTime:       start,
		EndTime:         end,
		DurationSeconds: end.Sub(start).Seconds(),
		StepsCompleted:  store.Completed(),
		StepEvidence:    data,
		Enforcement: Enforcement{
			Mode:         ModeExternal,
			Guarantee:    Guarantee,
			ApprovalGate: gate,
		},
	}, nil
}

// Logger writes audit records to a directory.
type Logger struct {
	dir    string
	logger *zap.Logger
}

// NewLogger creates a Logger writing into dir.
func NewLogger(dir string, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{dir: dir, logger: logger}
}

// Dir returns the audit directory.
func (l *Logger) Dir() string {
	return l.dir
}

// Persist writes rec and returns its path. The file name is derived from the
// sprint and the end time; a numeric suffix is added when a record with the
// same name already exists.
func (l *Logger) Persist(rec Record) (string, error) {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create audit directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode audit record: %w", err)
	}

	path, err := l.nextPath(rec)
	if err != nil {
		return "", err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("failed to write audit record: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write audit record: %w", err)
	}

	l.logger.Info("audit record written",
		zap.String("run_id", rec.RunID),
		zap.String("status", rec.Status),
		zap.String("path", path))
	return path, nil
}

func (l *Logger) nextPath(rec Record) (string, error) {
	base := fmt.Sprintf("%s-%s-%s", Workflow, Slug(rec.Sprint), rec.EndTime.Format(timestampLayout))
	for n := 1; n < 1000; n++ {
		name := base + ".json"
		if n > 1 {
			name = fmt.Sprintf("%s-%d.json", base, n)
		}
		path := filepath.Join(l.dir, name)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return path, nil
		} else if err != nil {
			return "", fmt.Errorf("failed to check audit path: %w", err)
		}
	}
	return "", fmt.Errorf("too many audit records named %s", base)
}

// Slug makes a sprint name safe for file names. Spaces and path separators
// become dashes; case is kept.
func Slug(sprint string) string {
	r := strings.NewReplacer(" ", "-", "/", "-", "\\", "-")
	s := r.Replace(strings.TrimSpace(sprint))
	if s == "" {
		return "unnamed"
	}
	return s
}

// Load reads a record from path.
func Load(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, fmt.Errorf("failed to read audit record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("failed to parse audit record %s: %w", path, err)
	}
	if err := pipeline.ValidateOrder(rec.StepsCompleted); err != nil {
		return Record{}, fmt.Errorf("audit record %s: %w", path, err)
	}
	return rec, nil
}

// Entry is one record found by [List].
type Entry struct {
	Path   string
	Record Record
}

// List returns the records in dir, newest first. Files that are not audit
// records are skipped.
func List(dir string) ([]Entry, error) {
	paths, err := filepath.Glob(filepath.Join(dir, Workflow+"-*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}

	var entries []Entry
	for _, path := range paths {
		rec, err := Load(path)
		if err != nil || rec.Workflow != Workflow {
			continue
		}
		entries = append(entries, Entry{Path: path, Record: rec})
	}
	if len(entries) == 0 {
		return nil, ErrNoRecords
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Record.EndTime.Equal(entries[j].Record.EndTime) {
			return entries[i].Path > entries[j].Path
		}
		return entries[i].Record.EndTime.After(entries[j].Record.EndTime)
	})
	return entries, nil
}
