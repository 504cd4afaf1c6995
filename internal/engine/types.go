package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rlggyp/grafana-exim/internal/client"
)

// EntityType names one of the migrated content classes.
type EntityType string

const (
	TypeDatasource EntityType = "datasource"
	TypeFolder     EntityType = "folder"
	TypeDashboard  EntityType = "dashboard"
)

// Outcome is the final state of one entity within a run.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Source is the read side of a Grafana instance.
type Source interface {
	ListFolders(ctx context.Context) ([]client.Folder, error)
	GetFolder(ctx context.Context, uid string) (client.Folder, error)
	ListDashboards(ctx context.Context) ([]client.Dashboard, error)
	GetDashboardDetail(ctx context.Context, uid string) (client.Dashboard, error)
	ListDatasources(ctx context.Context) ([]client.Datasource, error)
}

// Destination is the write side of a Grafana instance. Each upsert reports
// whether it created the entity rather than updated it.
type Destination interface {
	UpsertFolder(ctx context.Context, f client.Folder) (client.Folder, bool, error)
	UpsertDashboard(ctx context.Context, d client.Dashboard) (client.Dashboard, bool, error)
	UpsertDatasource(ctx context.Context, ds client.Datasource) (client.Datasource, bool, error)
}

// Snapshot is the sanitized content tree of one instance. Class errors record
// list calls that failed wholesale; Incomplete records listed entities that
// never made it into the tree, either failed to fetch or skipped on
// cancellation, so the run report still accounts for every entity.
type Snapshot struct {
	Folders     []client.Folder     `json:"folders"`
	Dashboards  []client.Dashboard  `json:"dashboards"`
	Datasources []client.Datasource `json:"datasources"`

	ClassErrors map[EntityType]string `json:"classErrors,omitempty"`
	Incomplete  []Result              `json:"incomplete,omitempty"`
}

// Result is the outcome of one entity.
type Result struct {
	Type    EntityType `json:"type"`
	UID     string     `json:"uid"`
	Title   string     `json:"title,omitempty"`
	Outcome Outcome    `json:"outcome"`
	Detail  string     `json:"detail,omitempty"`
}

// Summary aggregates per-entity outcomes for one migration run.
type Summary struct {
	RunID      string    `json:"runId"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	Results []Result `json:"results"`

	Created     int                   `json:"created"`
	Updated     int                   `json:"updated"`
	Skipped     int                   `json:"skipped"`
	FailedCount int                   `json:"failed"`
	ClassErrors map[EntityType]string `json:"classErrors,omitempty"`

	mu sync.Mutex
}

func newSummary() *Summary {
	return &Summary{
		RunID:       uuid.NewString(),
		StartedAt:   time.Now().UTC(),
		ClassErrors: make(map[EntityType]string),
	}
}

func (s *Summary) record(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Results = append(s.Results, r)
	switch r.Outcome {
	case OutcomeCreated:
		s.Created++
	case OutcomeUpdated:
		s.Updated++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.FailedCount++
	}
}

func (s *Summary) classError(t EntityType, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ClassErrors[t] = detail
}

// Failed reports whether any entity or entity class ended in failure. The
// process exit code is derived from this.
func (s *Summary) Failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.FailedCount > 0 || len(s.ClassErrors) > 0
}
