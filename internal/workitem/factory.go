package workitem

import (
	"context"
	"fmt"

	"sprintgate/internal/config"
)

// Supported work tracking platforms.
const (
	PlatformFile   = "file-based"
	PlatformGitHub = "github"
	PlatformNone   = "none"
)

// New builds the adapter selected by cfg.Platform.
//
// PlatformNone returns a nil adapter and no error. The review pipeline treats
// a nil adapter as an unavailable collaborator and records degraded evidence.
func New(ctx context.Context, cfg config.WorkTrackingConfig) (Adapter, error) {
	switch cfg.Platform {
	case PlatformFile, "":
		path := cfg.FilePath
		if path == "" {
			path = DefaultFilePath
		}
		return NewFileAdapter(path), nil

	case PlatformGitHub:
		client := NewGitHubClient(ctx, cfg.GitHub.Token)
		if cfg.GitHub.BaseURL != "" {
			var err error
			client, err = client.WithEnterpriseURLs(cfg.GitHub.BaseURL, cfg.GitHub.BaseURL)
			if err != nil {
				return nil, fmt.Errorf("invalid github base url: %w", err)
			}
		}
		adapter, err := NewGitHubAdapter(client, GitHubOptions{
			Owner:       cfg.GitHub.Owner,
			Repo:        cfg.GitHub.Repo,
			TypeLabels:  cfg.TypeLabels(),
			DoneState:   cfg.ReportedDoneState(),
			DoneStates:  cfg.DoneStates,
			ClosedState: cfg.ClosedState,
		})
		if err != nil {
			return nil, err
		}
		return adapter, nil

	case PlatformNone:
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown work tracking platform: %s", cfg.Platform)
	}
}
