// Package types defines the data model shared across the storage, normalization,
// embedding and task-core packages.
package types

import (
	"fmt"
	"time"
)

// Frame is the closed set of canonical sentence shapes every insight is rewritten into.
type Frame string

const (
	FrameCausal      Frame = "causal"
	FrameConstraint  Frame = "constraint"
	FramePattern     Frame = "pattern"
	FrameEquivalence Frame = "equivalence"
	FrameTaxonomy    Frame = "taxonomy"
	FrameProcedure   Frame = "procedure"
)

// IsValid reports whether f is one of the six canonical frames.
func (f Frame) IsValid() bool {
	switch f {
	case FrameCausal, FrameConstraint, FramePattern, FrameEquivalence, FrameTaxonomy, FrameProcedure:
		return true
	}
	return false
}

// Weight returns the frame's multiplier in the confidence-scoring formula (§4.3).
func (f Frame) Weight() float64 {
	switch f {
	case FrameCausal, FrameConstraint, FramePattern:
		return 1.0
	case FrameProcedure:
		return 0.9
	case FrameEquivalence:
		return 0.8
	case FrameTaxonomy:
		return 0.6
	default:
		return 0
	}
}

// ParseFrame validates a frame string, failing loudly on anything outside the closed set
// rather than silently defaulting (per the closed-vocabulary design note).
func ParseFrame(s string) (Frame, error) {
	f := Frame(s)
	if !f.IsValid() {
		return "", fmt.Errorf("invalid frame %q", s)
	}
	return f, nil
}

// SubjectKind is the closed set of subject node types in the knowledge graph.
type SubjectKind string

const (
	SubjectDomain     SubjectKind = "domain"
	SubjectEntity     SubjectKind = "entity"
	SubjectProblem    SubjectKind = "problem"
	SubjectResolution SubjectKind = "resolution"
	SubjectContext    SubjectKind = "context"
	SubjectRepo       SubjectKind = "repo"
	SubjectPR         SubjectKind = "pr"
	SubjectPerson     SubjectKind = "person"
	SubjectProject    SubjectKind = "project"
	SubjectTask       SubjectKind = "task"
)

func (k SubjectKind) IsValid() bool {
	switch k {
	case SubjectDomain, SubjectEntity, SubjectProblem, SubjectResolution, SubjectContext,
		SubjectRepo, SubjectPR, SubjectPerson, SubjectProject, SubjectTask:
		return true
	}
	return false
}

// RelationType is the closed vocabulary for subject-to-subject edges.
type RelationType string

const (
	RelContains      RelationType = "contains"
	RelScopes        RelationType = "scopes"
	RelFrames        RelationType = "frames"
	RelSolvedBy      RelationType = "solved_by"
	RelImplementedIn RelationType = "implemented_in"
	RelAppliesTo     RelationType = "applies_to"
	RelInvolves      RelationType = "involves"
	RelHasProblem    RelationType = "has_problem"
	RelAddresses     RelationType = "addresses"
	RelProduces      RelationType = "produces"
	RelWorksOn       RelationType = "works_on"
	RelAuthors       RelationType = "authors"
	RelResolves      RelationType = "resolves"
	RelSharedSubject RelationType = "shared_subject"
)

func (r RelationType) IsValid() bool {
	switch r {
	case RelContains, RelScopes, RelFrames, RelSolvedBy, RelImplementedIn, RelAppliesTo,
		RelInvolves, RelHasProblem, RelAddresses, RelProduces, RelWorksOn, RelAuthors,
		RelResolves, RelSharedSubject:
		return true
	}
	return false
}

// Insight is a single atomic assertion, rewritten into one Frame's template.
type Insight struct {
	ID             string
	Text           string
	NormalizedText string
	Frame          Frame
	Domains        []string
	Entities       []string
	Problems       []string
	Resolutions    []string
	Contexts       []string
	Confidence     float64
	Source         string
	Embedding      []float32
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// KBChunk is row-shape-identical to Insight except for KBID/SourceURL replacing Source.
type KBChunk struct {
	ID             string
	Text           string
	NormalizedText string
	Frame          Frame
	Domains        []string
	Entities       []string
	Problems       []string
	Resolutions    []string
	Contexts       []string
	Confidence     float64
	KBID           string
	SourceURL      string
	Embedding      []float32
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// KnowledgeBase is a named collection of externally-sourced document chunks.
type KnowledgeBase struct {
	ID          string
	Name        string
	Description string
	SourceType  string // crawl, scrape, file, text
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

var validSourceTypes = map[string]bool{"crawl": true, "scrape": true, "file": true, "text": true}

func IsValidSourceType(s string) bool { return validSourceTypes[s] }

// Subject is a typed, lowercased tag node. Its ID is a deterministic hash of kind+name
// so upserts are idempotent across processes and DB rebuilds (see SubjectID).
type Subject struct {
	ID   string
	Name string
	Kind SubjectKind
}

// SubjectRelation is a directed edge between two subjects.
type SubjectRelation struct {
	FromSubject  string
	RelationType RelationType
	ToSubject    string
}

// InsightRelation is an undirected-by-convention edge (stored FromID < ToID) between insights.
type InsightRelation struct {
	FromID       string
	ToID         string
	RelationType string
	Weight       float64
}

// GitContext carries the optional git-derived fields accepted by insert (§4.2).
type GitContext struct {
	Repo    string
	PR      string
	Person  string
	Project string
	Task    string
}

func (g *GitContext) IsEmpty() bool {
	return g == nil || (g.Repo == "" && g.PR == "" && g.Person == "" && g.Project == "" && g.Task == "")
}

// TaskStatus is the closed set of task lifecycle states.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskBlocked    TaskStatus = "blocked"
	TaskDone       TaskStatus = "done"
	TaskFailed     TaskStatus = "failed"
	TaskCanceled   TaskStatus = "canceled"
)

func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskBlocked, TaskDone, TaskFailed, TaskCanceled:
		return true
	}
	return false
}

// Task is a row in the task/lock state machine (C7), orthogonal to the insight core.
type Task struct {
	TaskID     string
	Title      string
	Status     TaskStatus
	Owner      string
	RetryCount int
	Version    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TaskLock is a resource-path claim held by a task while active.
type TaskLock struct {
	ID        string
	TaskID    string
	Resource  string
	Active    bool
	CreatedAt time.Time
}

// TaskDependency records that TaskID cannot enter in_progress until DependsOnTaskID is done.
type TaskDependency struct {
	TaskID           string
	DependsOnTaskID  string
}

// TaskEvent is an immutable append-only row describing something that happened to a task.
type TaskEvent struct {
	ID        string
	TaskID    string
	EventType string
	Actor     string
	Payload   map[string]any
	CreatedAt time.Time
}
