package workspace

import (
	"context"
	"sync"

	"github.com/bryanwahyu/analytics-workspace/internal/domain/analysis"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/projects"
	"github.com/bryanwahyu/analytics-workspace/internal/infra/remote"
)

// SelectionStatus of the current file's analysis retrieval
type SelectionStatus string

const (
	SelectionIdle       SelectionStatus = "idle"
	SelectionLoading    SelectionStatus = "loading"
	SelectionLoaded     SelectionStatus = "loaded"
	SelectionNoAnalysis SelectionStatus = "no_analysis"
	SelectionFailed     SelectionStatus = "failed"
)

// SelectionState snapshot
type SelectionState struct {
	FileID   projects.FileID  `json:"file_id,omitempty"`
	Status   SelectionStatus  `json:"status"`
	Analysis *analysis.Record `json:"analysis,omitempty"`
	Error    *ErrorView       `json:"error,omitempty"`
}

// FileSelection tracks the current file of one project and holds its
// persisted analysis.
//
// Responses are matched against the selection that issued them: every
// select, deselect or retry bumps gen, and a response whose captured gen no
// longer matches is dropped.
type FileSelection struct {
	mu      sync.Mutex
	api     analysis.Fetcher
	hooks   Hooks
	project projects.Project

	fileID projects.FileID
	gen    uint64
	status SelectionStatus
	record *analysis.Record
	err    error

	events changes
}

func NewFileSelection(project projects.Project, api analysis.Fetcher, hooks Hooks) *FileSelection {
	return &FileSelection{
		api:     api,
		hooks:   hooks.withDefaults(),
		project: project,
		status:  SelectionIdle,
	}
}

// Project returns the project the controller was built for
func (c *FileSelection) Project() projects.Project {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.project
}

// Current returns the selected file
func (c *FileSelection) Current() (projects.File, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fileID == 0 {
		return projects.File{}, false
	}
	return c.project.File(c.fileID)
}

func (c *FileSelection) State() SelectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *FileSelection) stateLocked() SelectionState {
	return SelectionState{
		FileID:   c.fileID,
		Status:   c.status,
		Analysis: c.record,
		Error:    viewOf(c.err),
	}
}

func (c *FileSelection) changed() {
	c.mu.Lock()
	seq, st := c.events.stamp(), c.stateLocked()
	c.mu.Unlock()
	c.events.publish(c.hooks, ControllerSelection, c.project.ID, seq, st)
}

// Select makes fileID current. Files that report an analysis trigger its
// retrieval; files that do not are marked no_analysis without a request.
// Selecting the already selected file is a no-op.
func (c *FileSelection) Select(ctx context.Context, fileID projects.FileID) error {
	gen, load, err := c.begin(fileID)
	if err != nil || !load {
		return err
	}
	return c.fetch(ctx, fileID, gen)
}

// begin switches the current file without touching the network. load
// reports whether the caller must follow with fetch(fileID, gen).
func (c *FileSelection) begin(fileID projects.FileID) (gen uint64, load bool, err error) {
	c.mu.Lock()
	if c.fileID == fileID && fileID != 0 {
		c.mu.Unlock()
		return 0, false, nil
	}
	file, ok := c.project.File(fileID)
	if !ok {
		c.mu.Unlock()
		return 0, false, ErrUnknownFile
	}
	c.fileID = fileID
	c.record = nil
	c.err = nil
	c.gen++
	c.status = SelectionNoAnalysis
	if file.HasAnalysis {
		c.status = SelectionLoading
	}
	gen = c.gen
	c.mu.Unlock()
	c.changed()
	return gen, file.HasAnalysis, nil
}

// Retry re-issues retrieval for the selected file
func (c *FileSelection) Retry(ctx context.Context) error {
	c.mu.Lock()
	if c.fileID == 0 {
		c.mu.Unlock()
		return ErrNoSelection
	}
	fileID := c.fileID
	c.gen++
	gen := c.gen
	c.status = SelectionLoading
	c.err = nil
	c.mu.Unlock()
	c.changed()

	return c.fetch(ctx, fileID, gen)
}

func (c *FileSelection) fetch(ctx context.Context, fileID projects.FileID, gen uint64) error {
	rec, err := c.api.GetForFile(ctx, fileID)

	c.mu.Lock()
	if c.gen != gen || c.fileID != fileID {
		c.mu.Unlock()
		c.hooks.dropped(ControllerSelection, "get analysis")
		return nil
	}
	switch {
	case err == nil:
		c.status = SelectionLoaded
		c.record = rec
	case remote.IsNoAnalysis(err):
		c.status = SelectionNoAnalysis
		err = nil
	default:
		c.status = SelectionFailed
		c.err = err
	}
	c.mu.Unlock()

	c.hooks.record(ctx, Operation{Controller: ControllerSelection, Name: "get analysis", ProjectID: c.project.ID}, err)
	c.changed()
	return err
}

// Deselect clears the current file and drops any in-flight retrieval
func (c *FileSelection) Deselect() {
	c.mu.Lock()
	c.fileID = 0
	c.gen++
	c.status = SelectionIdle
	c.record = nil
	c.err = nil
	c.mu.Unlock()
	c.changed()
}

// MarkAnalyzed records that fileID now has a persisted analysis.
// When fileID is current the record replaces whatever was shown.
func (c *FileSelection) MarkAnalyzed(fileID projects.FileID, rec *analysis.Record) {
	c.mu.Lock()
	for i := range c.project.Files {
		if c.project.Files[i].ID == fileID {
			c.project.Files[i].HasAnalysis = true
		}
	}
	if c.fileID != fileID {
		c.mu.Unlock()
		return
	}
	c.gen++
	c.err = nil
	if rec != nil {
		c.record = rec
		c.status = SelectionLoaded
	}
	c.mu.Unlock()
	c.changed()
}

func (c *FileSelection) DismissError() {
	c.mu.Lock()
	c.err = nil
	c.mu.Unlock()
	c.changed()
}
