package workitem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultFilePath is the work item document location relative to the
// project root.
const DefaultFilePath = ".claude/work-items/work-items.yaml"

// fileDocument is the on-disk layout of the work item YAML file.
type fileDocument struct {
	WorkItems []WorkItem `yaml:"work_items"`
}

// FileAdapter implements [Adapter] over a single YAML document.
//
// The document looks like:
//
//	work_items:
//	  - id: "101"
//	    type: Epic
//	    state: Done
//	    title: Checkout redesign
//	    iteration: Sprint 7
//
// Writes go to a temp file that is renamed over the original, so a crash
// mid-write leaves the previous document intact.
type FileAdapter struct {
	path string
	mu   sync.Mutex
}

// NewFileAdapter creates a [FileAdapter] for the YAML file at path.
func NewFileAdapter(path string) *FileAdapter {
	return &FileAdapter{path: path}
}

// Path returns the backing file.
func (f *FileAdapter) Path() string {
	return f.path
}

// Query returns the items whose iteration equals sprint, in file order.
func (f *FileAdapter) Query(ctx context.Context, sprint string) ([]WorkItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return nil, err
	}

	items := make([]WorkItem, 0, len(doc.WorkItems))
	for _, item := range doc.WorkItems {
		if item.Iteration == sprint {
			items = append(items, item)
		}
	}
	return items, nil
}

// Get returns the item with the given id.
func (f *FileAdapter) Get(ctx context.Context, id string) (WorkItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return WorkItem{}, err
	}

	for _, item := range doc.WorkItems {
		if item.ID == id {
			return item, nil
		}
	}
	return WorkItem{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Create appends item, assigning the next numeric id when item.ID is empty.
// A missing file is created.
func (f *FileAdapter) Create(ctx context.Context, item WorkItem) (WorkItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return WorkItem{}, err
		}
		doc = &fileDocument{}
	}

	if item.ID == "" {
		item.ID = nextID(doc.WorkItems)
	}
	for _, existing := range doc.WorkItems {
		if existing.ID == item.ID {
			return WorkItem{}, fmt.Errorf("work item already exists: %s", item.ID)
		}
	}

	doc.WorkItems = append(doc.WorkItems, item)
	if err := f.write(doc); err != nil {
		return WorkItem{}, err
	}
	return item, nil
}

// Update applies changes to the item with the given id.
func (f *FileAdapter) Update(ctx context.Context, id string, changes Changes) (WorkItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return WorkItem{}, err
	}

	for i, item := range doc.WorkItems {
		if item.ID != id {
			continue
		}
		updated := changes.apply(item)
		doc.WorkItems[i] = updated
		if err := f.write(doc); err != nil {
			return WorkItem{}, err
		}
		return updated, nil
	}
	return WorkItem{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (f *FileAdapter) read() (*fileDocument, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, &UnavailableError{Platform: PlatformFile, Err: fmt.Errorf("failed to read work items: %w", err)}
	}

	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse work items: %w", err)
	}
	return &doc, nil
}

func (f *FileAdapter) write(doc *fileDocument) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal work items: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("failed to write work items: %w", err)
	}

	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write work items: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write work items: %w", err)
	}
	return nil
}

// nextID returns one past the largest numeric id, or "1" for an empty list.
func nextID(items []WorkItem) string {
	highest := 0
	for _, item := range items {
		if n, err := strconv.Atoi(item.ID); err == nil && n > highest {
			highest = n
		}
	}
	return strconv.Itoa(highest + 1)
}
