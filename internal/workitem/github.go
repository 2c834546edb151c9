package workitem

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// GitHub issue states.
const (
	githubOpen   = "open"
	githubClosed = "closed"
)

// GitHubOptions configures a [GitHubAdapter].
type GitHubOptions struct {
	Owner string
	Repo  string

	// TypeLabels lists the labels that name a work item type, such as "Epic"
	// or "Bug". The first matching label on an issue becomes its type.
	TypeLabels []string

	// DoneState is reported for closed issues; open issues report OpenState.
	DoneState string
	OpenState string

	// DoneStates and ClosedState are the states that close an issue on
	// Update. Any other state reopens it.
	DoneStates  []string
	ClosedState string
}

// GitHubAdapter implements [Adapter] over GitHub Issues.
//
// A sprint is a milestone with the sprint name as its title, an issue label
// carries the item type, and the open/closed flag carries the state.
type GitHubAdapter struct {
	client *github.Client
	opts   GitHubOptions
}

// NewGitHubClient creates a GitHub client. An empty token yields an
// unauthenticated client, which is enough for public repositories.
func NewGitHubClient(ctx context.Context, token string) *github.Client {
	if token == "" {
		return github.NewClient(nil)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return github.NewClient(oauth2.NewClient(ctx, ts))
}

// NewGitHubAdapter creates a [GitHubAdapter] using client.
func NewGitHubAdapter(client *github.Client, opts GitHubOptions) (*GitHubAdapter, error) {
	if opts.Owner == "" || opts.Repo == "" {
		return nil, fmt.Errorf("github work tracking requires owner and repo")
	}
	if opts.DoneState == "" {
		opts.DoneState = "Done"
	}
	if opts.OpenState == "" {
		opts.OpenState = "Active"
	}
	if len(opts.DoneStates) == 0 {
		opts.DoneStates = []string{opts.DoneState}
	}
	return &GitHubAdapter{client: client, opts: opts}, nil
}

// Query returns the issues in the milestone titled sprint. Pull requests are
// skipped.
func (g *GitHubAdapter) Query(ctx context.Context, sprint string) ([]WorkItem, error) {
	number, err := g.milestoneNumber(ctx, sprint)
	if err != nil {
		return nil, err
	}

	opts := &github.IssueListByRepoOptions{
		Milestone:   strconv.Itoa(number),
		State:       "all",
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var items []WorkItem
	for {
		issues, resp, err := g.client.Issues.ListByRepo(ctx, g.opts.Owner, g.opts.Repo, opts)
		if err != nil {
			return nil, g.unavailable(fmt.Errorf("failed to list issues: %w", err))
		}
		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			items = append(items, g.toWorkItem(issue))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return items, nil
}

// Get returns the issue with the given number.
func (g *GitHubAdapter) Get(ctx context.Context, id string) (WorkItem, error) {
	number, err := strconv.Atoi(id)
	if err != nil {
		return WorkItem{}, fmt.Errorf("%w: invalid issue number %q", ErrNotFound, id)
	}

	issue, resp, err := g.client.Issues.Get(ctx, g.opts.Owner, g.opts.Repo, number)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return WorkItem{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return WorkItem{}, g.unavailable(fmt.Errorf("failed to get issue %s: %w", id, err))
	}
	return g.toWorkItem(issue), nil
}

// Create opens a new issue. The item type becomes a label and the iteration,
// when set, selects the milestone.
func (g *GitHubAdapter) Create(ctx context.Context, item WorkItem) (WorkItem, error) {
	req := &github.IssueRequest{
		Title: github.String(item.Title),
	}
	if item.Type != "" {
		req.Labels = &[]string{item.Type}
	}
	if item.Iteration != "" {
		number, err := g.milestoneNumber(ctx, item.Iteration)
		if err != nil {
			return WorkItem{}, err
		}
		req.Milestone = github.Int(number)
	}

	issue, _, err := g.client.Issues.Create(ctx, g.opts.Owner, g.opts.Repo, req)
	if err != nil {
		return WorkItem{}, g.unavailable(fmt.Errorf("failed to create issue: %w", err))
	}
	return g.toWorkItem(issue), nil
}

// Update edits the issue title and maps the requested state onto open or
// closed.
func (g *GitHubAdapter) Update(ctx context.Context, id string, changes Changes) (WorkItem, error) {
	number, err := strconv.Atoi(id)
	if err != nil {
		return WorkItem{}, fmt.Errorf("%w: invalid issue number %q", ErrNotFound, id)
	}

	req := &github.IssueRequest{}
	if changes.Title != "" {
		req.Title = github.String(changes.Title)
	}
	if changes.State != "" {
		if g.isDone(changes.State) {
			req.State = github.String(githubClosed)
		} else {
			req.State = github.String(githubOpen)
		}
	}

	issue, resp, err := g.client.Issues.Edit(ctx, g.opts.Owner, g.opts.Repo, number, req)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return WorkItem{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return WorkItem{}, g.unavailable(fmt.Errorf("failed to update issue %s: %w", id, err))
	}
	return g.toWorkItem(issue), nil
}

func (g *GitHubAdapter) milestoneNumber(ctx context.Context, title string) (int, error) {
	opts := &github.MilestoneListOptions{
		State:       "all",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		milestones, resp, err := g.client.Issues.ListMilestones(ctx, g.opts.Owner, g.opts.Repo, opts)
		if err != nil {
			return 0, g.unavailable(fmt.Errorf("failed to list milestones: %w", err))
		}
		for _, m := range milestones {
			if m.GetTitle() == title {
				return m.GetNumber(), nil
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return 0, fmt.Errorf("no milestone titled %q in %s/%s", title, g.opts.Owner, g.opts.Repo)
}

func (g *GitHubAdapter) toWorkItem(issue *github.Issue) WorkItem {
	item := WorkItem{
		ID:    strconv.Itoa(issue.GetNumber()),
		Title: issue.GetTitle(),
		Type:  "Issue",
		State: g.opts.OpenState,
	}
	if issue.GetState() == githubClosed {
		item.State = g.opts.DoneState
	}
	if issue.Milestone != nil {
		item.Iteration = issue.Milestone.GetTitle()
	}
	for _, label := range issue.Labels {
		if t, ok := g.typeFor(label.GetName()); ok {
			item.Type = t
			break
		}
	}
	return item
}

func (g *GitHubAdapter) typeFor(label string) (string, bool) {
	for _, t := range g.opts.TypeLabels {
		if strings.EqualFold(t, label) {
			return t, true
		}
	}
	return "", false
}

func (g *GitHubAdapter) isDone(state string) bool {
	if g.opts.ClosedState != "" && strings.EqualFold(g.opts.ClosedState, state) {
		return true
	}
	for _, s := range g.opts.DoneStates {
		if strings.EqualFold(s, state) {
			return true
		}
	}
	return false
}

func (g *GitHubAdapter) unavailable(err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		err = fmt.Errorf("rate limited until %s: %w", rateErr.Rate.Reset.Time, err)
	}
	return &UnavailableError{Platform: PlatformGitHub, Err: err}
}
