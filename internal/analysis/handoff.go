package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"sprintgate/internal/clock"
	"sprintgate/internal/evidence"
)

// Handoff artifact names inside the state directory.
const (
	RequestFile  = "sprint-review-analysis-request.json"
	ResponseFile = "sprint-review-analysis-response.json"
)

// HandoffOptions configures a [Handoff] strategy.
type HandoffOptions struct {
	// Dir holds the request and response artifacts.
	Dir string

	// Timeout bounds the wait for a response.
	Timeout time.Duration

	// PollInterval is the delay between checks for the response.
	PollInterval time.Duration
}

// WaitCallback is invoked once the request is written, before waiting.
type WaitCallback func(requestPath, responsePath string, timeout time.Duration)

// handoffRequest is the request artifact written for the analyst.
type handoffRequest struct {
	Sprint    string                `json:"sprint"`
	Timestamp time.Time             `json:"timestamp"`
	Metrics   evidence.Metrics      `json:"metrics"`
	Analysis  evidence.Analysis     `json:"analysis"`
	Epics     evidence.Categories   `json:"epics"`
	Tests     evidence.Verification `json:"tests"`
	Request   string                `json:"request"`
	Format    string                `json:"format"`
}

// Handoff is the file-drop strategy. It writes the snapshot as a request
// artifact and polls for a response artifact until the timeout. A filesystem
// watcher on the directory wakes the poll as soon as the response appears.
//
// On timeout or an unreadable response the [Heuristic] fallback answers. On
// success both artifacts are deleted.
type Handoff struct {
	opts     HandoffOptions
	fallback *Heuristic
	clock    clock.Clock
	logger   *zap.Logger
	onWait   WaitCallback
}

// NewHandoff creates a [Handoff] strategy.
func NewHandoff(opts HandoffOptions, fallback *Heuristic, clk clock.Clock, logger *zap.Logger) *Handoff {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handoff{opts: opts, fallback: fallback, clock: clk, logger: logger}
}

// SetWaitCallback registers a callback that announces the pending request.
func (h *Handoff) SetWaitCallback(cb WaitCallback) {
	h.onWait = cb
}

// RequestPath returns the request artifact location.
func (h *Handoff) RequestPath() string {
	return filepath.Join(h.opts.Dir, RequestFile)
}

// ResponsePath returns the response artifact location.
func (h *Handoff) ResponsePath() string {
	return filepath.Join(h.opts.Dir, ResponseFile)
}

// Review writes the request, waits for the response and parses it.
//
// The only errors returned are a failure to write the request and context
// cancellation during the wait.
func (h *Handoff) Review(ctx context.Context, snap Snapshot) (evidence.Reviews, error) {
	requestPath, responsePath := h.RequestPath(), h.ResponsePath()

	// A response left by an earlier run must never be consumed.
	if err := os.Remove(responsePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return evidence.Reviews{}, fmt.Errorf("failed to clear stale analysis response: %w", err)
	}
	if err := h.writeRequest(snap); err != nil {
		return evidence.Reviews{}, err
	}

	if h.onWait != nil {
		h.onWait(requestPath, responsePath, h.opts.Timeout)
	}
	h.logger.Info("waiting for analysis handoff",
		zap.String("request", requestPath),
		zap.Duration("timeout", h.opts.Timeout),
	)

	data, err := h.await(ctx, responsePath)
	if err != nil {
		if ctx.Err() != nil {
			return evidence.Reviews{}, ctx.Err()
		}
		h.logger.Warn("analysis handoff fell back to heuristic", zap.Error(err))
		return h.fallbackReviews(snap), nil
	}

	reviews, err := ParseReviews(data)
	if err != nil {
		h.logger.Warn("analysis handoff response rejected", zap.String("response", responsePath), zap.Error(err))
		return h.fallbackReviews(snap), nil
	}

	for _, path := range []string{responsePath, requestPath} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			h.logger.Warn("failed to remove handoff artifact", zap.String("path", path), zap.Error(err))
		}
	}

	reviews.Source = evidence.SourceHandoff
	return reviews, nil
}

// errHandoffTimeout is returned by await when no response arrived in time.
var errHandoffTimeout = errors.New("timed out waiting for analysis response")

// await polls for path until it exists, the timeout elapses or ctx ends.
func (h *Handoff) await(ctx context.Context, path string) ([]byte, error) {
	var wake <-chan fsnotify.Event
	if watcher, err := fsnotify.NewWatcher(); err != nil {
		h.logger.Debug("handoff watcher unavailable, polling only", zap.Error(err))
	} else {
		defer watcher.Close()
		if err := watcher.Add(h.opts.Dir); err != nil {
			h.logger.Debug("handoff watcher unavailable, polling only", zap.Error(err))
		} else {
			wake = watcher.Events
		}
	}

	deadline := h.clock.Now().Add(h.opts.Timeout)
	woken := false
	for {
		data, err := os.ReadFile(path)
		switch {
		case err == nil && woken && !json.Valid(data):
			// Woken mid-write; the next poll reads the finished file.
		case err == nil:
			return data, nil
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("failed to read analysis response: %w", err)
		}
		woken = false

		remaining := deadline.Sub(h.clock.Now())
		if remaining <= 0 {
			return nil, errHandoffTimeout
		}
		wait := h.opts.PollInterval
		if wait > remaining {
			wait = remaining
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-h.clock.After(wait):
		case event, ok := <-wake:
			if !ok {
				wake = nil
				continue
			}
			woken = filepath.Base(event.Name) == ResponseFile
		}
	}
}

func (h *Handoff) writeRequest(snap Snapshot) error {
	req := handoffRequest{
		Sprint:    snap.Subject,
		Timestamp: h.clock.Now(),
		Metrics:   snap.Metrics,
		Analysis:  snap.Analysis,
		Epics:     snap.Categories,
		Tests:     snap.Verification,
		Request:   Instruction,
		Format:    responseFormat,
	}
	data, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode analysis request: %w", err)
	}

	if err := os.MkdirAll(h.opts.Dir, 0755); err != nil {
		return fmt.Errorf("failed to write analysis request: %w", err)
	}
	path := h.RequestPath()
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write analysis request: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write analysis request: %w", err)
	}
	return nil
}

func (h *Handoff) fallbackReviews(snap Snapshot) evidence.Reviews {
	reviews := h.fallback.Evaluate(snap.Metrics.CompletionRate)
	reviews.Source = evidence.SourceHandoffFallback
	return reviews
}
