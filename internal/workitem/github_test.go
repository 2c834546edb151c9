package workitem

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprintgate/internal/config"
)

// newTestGitHub returns an adapter talking to a test server driven by mux.
func newTestGitHub(t *testing.T, mux *http.ServeMux) *GitHubAdapter {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := github.NewClient(nil)
	base, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base

	adapter, err := NewGitHubAdapter(client, GitHubOptions{
		Owner:      "acme",
		Repo:       "shop",
		TypeLabels: []string{"Bug", "Epic", "Feature", "Task"},
	})
	require.NoError(t, err)
	return adapter
}

func milestonesHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, `[{"number":2,"title":"Sprint 6"},{"number":3,"title":"Sprint 7"}]`)
}

func TestNewGitHubAdapter_RequiresOwnerAndRepo(t *testing.T) {
	_, err := NewGitHubAdapter(github.NewClient(nil), GitHubOptions{Owner: "acme"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner and repo")
}

func TestGitHubAdapter_Query(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/shop/milestones", milestonesHandler)
	mux.HandleFunc("GET /repos/acme/shop/issues", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("milestone"))
		assert.Equal(t, "all", r.URL.Query().Get("state"))
		io.WriteString(w, `[
			{"number":11,"title":"Checkout redesign","state":"closed","labels":[{"name":"epic"}],"milestone":{"number":3,"title":"Sprint 7"}},
			{"number":12,"title":"Payment form","state":"open","labels":[{"name":"priority"},{"name":"Task"}],"milestone":{"number":3,"title":"Sprint 7"}},
			{"number":13,"title":"Bump deps","state":"open","pull_request":{"url":"https://example.invalid/pr/13"}}
		]`)
	})

	adapter := newTestGitHub(t, mux)
	items, err := adapter.Query(context.Background(), "Sprint 7")

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, WorkItem{ID: "11", Type: "Epic", State: "Done", Title: "Checkout redesign", Iteration: "Sprint 7"}, items[0])
	assert.Equal(t, WorkItem{ID: "12", Type: "Task", State: "Active", Title: "Payment form", Iteration: "Sprint 7"}, items[1])
}

func TestGitHubAdapter_Query_UnknownMilestone(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/shop/milestones", milestonesHandler)

	adapter := newTestGitHub(t, mux)
	_, err := adapter.Query(context.Background(), "Sprint 99")

	require.Error(t, err)
	assert.Contains(t, err.Error(), `no milestone titled "Sprint 99"`)
}

func TestGitHubAdapter_Query_ServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/shop/milestones", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"down"}`, http.StatusInternalServerError)
	})

	adapter := newTestGitHub(t, mux)
	_, err := adapter.Query(context.Background(), "Sprint 7")

	var unavailable *UnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, PlatformGitHub, unavailable.Platform)
}

func TestGitHubAdapter_Get(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/shop/issues/11", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"number":11,"title":"Checkout redesign","state":"open","labels":[{"name":"Epic"}]}`)
	})
	mux.HandleFunc("GET /repos/acme/shop/issues/404", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	})

	adapter := newTestGitHub(t, mux)

	item, err := adapter.Get(context.Background(), "11")
	require.NoError(t, err)
	assert.Equal(t, "Epic", item.Type)
	assert.Equal(t, "Active", item.State)

	_, err = adapter.Get(context.Background(), "404")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = adapter.Get(context.Background(), "not-a-number")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGitHubAdapter_Update(t *testing.T) {
	tests := []struct {
		name      string
		state     string
		wantState string
	}{
		{name: "done state closes", state: "Done", wantState: "closed"},
		{name: "other state reopens", state: "Active", wantState: "open"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]any
			mux := http.NewServeMux()
			mux.HandleFunc("PATCH /repos/acme/shop/issues/11", func(w http.ResponseWriter, r *http.Request) {
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				io.WriteString(w, `{"number":11,"title":"Checkout redesign","state":"`+tt.wantState+`"}`)
			})

			adapter := newTestGitHub(t, mux)
			_, err := adapter.Update(context.Background(), "11", Changes{State: tt.state})

			require.NoError(t, err)
			assert.Equal(t, tt.wantState, got["state"])
		})
	}
}

func TestGitHubAdapter_Create(t *testing.T) {
	var got map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/shop/milestones", milestonesHandler)
	mux.HandleFunc("POST /repos/acme/shop/issues", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"number":20,"title":"Follow-up","state":"open","labels":[{"name":"Task"}],"milestone":{"number":3,"title":"Sprint 7"}}`)
	})

	adapter := newTestGitHub(t, mux)
	created, err := adapter.Create(context.Background(), WorkItem{Type: "Task", Title: "Follow-up", Iteration: "Sprint 7"})

	require.NoError(t, err)
	assert.Equal(t, "20", created.ID)
	assert.Equal(t, "Task", created.Type)
	assert.Equal(t, []any{"Task"}, got["labels"])
	assert.Equal(t, float64(3), got["milestone"])
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultConfig().WorkTracking

	adapter, err := New(ctx, cfg)
	require.NoError(t, err)
	file, ok := adapter.(*FileAdapter)
	require.True(t, ok)
	assert.Equal(t, DefaultFilePath, file.Path())

	cfg.Platform = PlatformNone
	adapter, err = New(ctx, cfg)
	require.NoError(t, err)
	assert.Nil(t, adapter)

	cfg.Platform = PlatformGitHub
	cfg.GitHub.Owner = "acme"
	cfg.GitHub.Repo = "shop"
	adapter, err = New(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &GitHubAdapter{}, adapter)

	cfg.GitHub.Repo = ""
	_, err = New(ctx, cfg)
	assert.Error(t, err)

	cfg.Platform = "jira"
	_, err = New(ctx, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown work tracking platform")
}

func TestNew_GitHubClosedStateOutsideDoneStates(t *testing.T) {
	var patched map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/repos/acme/shop/milestones", milestonesHandler)
	mux.HandleFunc("GET /api/v3/repos/acme/shop/issues", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[
			{"number":11,"title":"Checkout redesign","state":"closed","labels":[{"name":"Epic"}],"milestone":{"number":3,"title":"Sprint 7"}},
			{"number":12,"title":"Payment form","state":"open","labels":[{"name":"Task"}],"milestone":{"number":3,"title":"Sprint 7"}}
		]`)
	})
	mux.HandleFunc("PATCH /api/v3/repos/acme/shop/issues/11", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&patched))
		io.WriteString(w, `{"number":11,"title":"Checkout redesign","state":"closed"}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	cfg := config.DefaultConfig().WorkTracking
	cfg.Platform = PlatformGitHub
	cfg.GitHub.Owner = "acme"
	cfg.GitHub.Repo = "shop"
	cfg.GitHub.BaseURL = server.URL + "/api/v3/"
	cfg.DoneStates = []string{"Done"}
	cfg.ClosedState = "Closed"

	adapter, err := New(context.Background(), cfg)
	require.NoError(t, err)

	items, err := adapter.Query(context.Background(), "Sprint 7")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Done", items[0].State)
	assert.True(t, cfg.IsDone(items[0].State), "closed issue must count as done")
	assert.False(t, cfg.IsDone(items[1].State))

	_, err = adapter.Update(context.Background(), "11", Changes{State: cfg.ClosedState})
	require.NoError(t, err)
	assert.Equal(t, "closed", patched["state"])
}

func TestGitHubAdapter_Update_StateCasing(t *testing.T) {
	var got map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /repos/acme/shop/issues/11", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		io.WriteString(w, `{"number":11,"state":"closed"}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := github.NewClient(nil)
	base, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base
	adapter, err := NewGitHubAdapter(client, GitHubOptions{
		Owner:       "acme",
		Repo:        "shop",
		DoneStates:  []string{"Done"},
		ClosedState: "Closed",
	})
	require.NoError(t, err)

	_, err = adapter.Update(context.Background(), "11", Changes{State: "CLOSED"})
	require.NoError(t, err)
	assert.Equal(t, "closed", got["state"])
}
