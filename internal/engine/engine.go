// Package engine orchestrates the migration pipeline: fetch the content tree
// from a source instance, sanitize it, resolve folder dependencies and write
// everything into a destination instance with bounded concurrency.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/rlggyp/grafana-exim/internal/client"
	"github.com/rlggyp/grafana-exim/internal/resolve"
	"github.com/rlggyp/grafana-exim/internal/sanitize"
)

// DefaultWorkers bounds concurrent writes per entity class. Kept small so a
// migration does not trip the remote instance's rate limiting.
const DefaultWorkers = 4

// Engine runs migrations. Safe for reuse across runs; all per-run state lives
// in the Snapshot and Summary values.
type Engine struct {
	workers int
	log     *logrus.Logger
}

// New builds an engine writing at most workers concurrent requests per entity
// class.
func New(log *logrus.Logger, workers int) *Engine {
	if log == nil {
		log = logrus.New()
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Engine{workers: workers, log: log}
}

// Export fetches and sanitizes the full content tree of the source instance.
// The three entity classes are listed concurrently; a list failure of one
// class is recorded on the snapshot and does not block the others. Only an
// authentication failure aborts the export as a whole.
func (e *Engine) Export(ctx context.Context, src Source) (*Snapshot, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	snap := &Snapshot{ClassErrors: make(map[EntityType]string)}
	var (
		mu      sync.Mutex
		authErr error
		wg      sync.WaitGroup
	)

	abort := func(err error) {
		mu.Lock()
		if authErr == nil {
			authErr = err
		}
		mu.Unlock()
		cancel()
	}
	classFail := func(t EntityType, err error) {
		if client.IsAuth(err) {
			abort(err)
		}
		mu.Lock()
		snap.ClassErrors[t] = err.Error()
		mu.Unlock()
		e.log.WithFields(logrus.Fields{
			"phase":      "fetch",
			"entityType": t,
			"outcome":    OutcomeFailed,
			"error":      err.Error(),
		}).Error("listing entity class failed")
	}
	entityFail := func(t EntityType, uid, title string, err error) {
		if client.IsAuth(err) {
			abort(err)
		}
		mu.Lock()
		snap.Incomplete = append(snap.Incomplete, Result{
			Type: t, UID: uid, Title: title, Outcome: OutcomeFailed, Detail: err.Error(),
		})
		mu.Unlock()
		e.log.WithFields(logrus.Fields{
			"phase":      "fetch",
			"entityType": t,
			"entityKey":  uid,
			"outcome":    OutcomeFailed,
			"error":      err.Error(),
		}).Error("fetching entity failed")
	}
	entitySkip := func(t EntityType, uid, title string) {
		mu.Lock()
		snap.Incomplete = append(snap.Incomplete, Result{
			Type: t, UID: uid, Title: title, Outcome: OutcomeSkipped, Detail: "cancelled",
		})
		mu.Unlock()
		e.log.WithFields(logrus.Fields{
			"phase":      "fetch",
			"entityType": t,
			"entityKey":  uid,
			"outcome":    OutcomeSkipped,
			"reason":     "cancelled",
		}).Info("entity skipped")
	}

	wg.Add(3)

	go func() {
		defer wg.Done()
		sources, err := src.ListDatasources(ctx)
		if err != nil {
			classFail(TypeDatasource, err)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		for _, ds := range sources {
			snap.Datasources = append(snap.Datasources, sanitize.Datasource(ds))
		}
	}()

	go func() {
		defer wg.Done()
		summaries, err := src.ListFolders(ctx)
		if err != nil {
			classFail(TypeFolder, err)
			return
		}
		// Search returns summaries only; the parent reference needs a
		// per-folder detail call.
		full := make([]client.Folder, len(summaries))
		ok := make([]bool, len(summaries))
		sem := semaphore.NewWeighted(int64(e.workers))
		var fwg sync.WaitGroup
		for i, s := range summaries {
			if ctx.Err() != nil {
				entitySkip(TypeFolder, s.UID, s.Title)
				continue
			}
			fwg.Add(1)
			go func(i int, uid, title string) {
				defer fwg.Done()
				if err := sem.Acquire(ctx, 1); err != nil {
					entitySkip(TypeFolder, uid, title)
					return
				}
				defer sem.Release(1)
				f, err := src.GetFolder(ctx, uid)
				if err != nil {
					if ctx.Err() != nil {
						entitySkip(TypeFolder, uid, title)
						return
					}
					entityFail(TypeFolder, uid, title, fmt.Errorf("fetching folder: %w", err))
					return
				}
				full[i] = sanitize.Folder(f)
				ok[i] = true
			}(i, s.UID, s.Title)
		}
		fwg.Wait()
		mu.Lock()
		defer mu.Unlock()
		for i := range full {
			if ok[i] {
				snap.Folders = append(snap.Folders, full[i])
			}
		}
	}()

	go func() {
		defer wg.Done()
		summaries, err := src.ListDashboards(ctx)
		if err != nil {
			classFail(TypeDashboard, err)
			return
		}
		full := make([]client.Dashboard, len(summaries))
		ok := make([]bool, len(summaries))
		sem := semaphore.NewWeighted(int64(e.workers))
		var dwg sync.WaitGroup
		for i, s := range summaries {
			if ctx.Err() != nil {
				entitySkip(TypeDashboard, s.UID, s.Title)
				continue
			}
			dwg.Add(1)
			go func(i int, uid, title string) {
				defer dwg.Done()
				if err := sem.Acquire(ctx, 1); err != nil {
					entitySkip(TypeDashboard, uid, title)
					return
				}
				defer sem.Release(1)
				d, err := src.GetDashboardDetail(ctx, uid)
				if err != nil {
					if ctx.Err() != nil {
						entitySkip(TypeDashboard, uid, title)
						return
					}
					entityFail(TypeDashboard, uid, title, fmt.Errorf("fetching dashboard: %w", err))
					return
				}
				// Keep the source folder reference; it is rewritten
				// against the identifier map at import time.
				full[i] = sanitize.Dashboard(d, d.FolderUID)
				ok[i] = true
			}(i, s.UID, s.Title)
		}
		dwg.Wait()
		mu.Lock()
		defer mu.Unlock()
		for i := range full {
			if ok[i] {
				snap.Dashboards = append(snap.Dashboards, full[i])
			}
		}
	}()

	wg.Wait()
	if authErr != nil {
		return nil, authErr
	}
	return snap, nil
}

// Import writes a snapshot into the destination instance in strict phase
// order: datasources, then folders, then dashboards. The returned error is
// non-nil only when the destination rejected the credentials; every other
// failure is captured per entity in the summary.
func (e *Engine) Import(ctx context.Context, dst Destination, snap *Snapshot) (*Summary, error) {
	sum := newSummary()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r := &run{engine: e, sum: sum, cancel: cancel}

	for t, detail := range snap.ClassErrors {
		sum.classError(t, detail)
	}
	for _, res := range snap.Incomplete {
		sum.record(res)
	}

	idmap := resolve.NewMap()
	known := make(map[string]bool, len(snap.Datasources))
	for _, ds := range snap.Datasources {
		known[ds.UID] = true
	}

	e.writeDatasources(ctx, r, dst, snap.Datasources, idmap)

	levels, err := resolve.Levels(snap.Folders)
	if err != nil {
		// Corrupted folder hierarchy stops folders and dashboards; the
		// datasource phase above already ran.
		sum.classError(TypeFolder, err.Error())
		for _, f := range snap.Folders {
			r.fail(TypeFolder, f.UID, f.Title, err)
		}
		for _, d := range snap.Dashboards {
			r.skip(TypeDashboard, d.UID, d.Title, "folder ordering failed: "+err.Error())
		}
	} else {
		e.writeFolders(ctx, r, dst, levels, idmap)
		e.writeDashboards(ctx, r, dst, snap.Dashboards, idmap, known)
	}

	sum.FinishedAt = time.Now().UTC()
	return sum, r.err()
}

// Migrate runs the full pipeline source to destination without touching disk.
func (e *Engine) Migrate(ctx context.Context, src Source, dst Destination) (*Summary, error) {
	snap, err := e.Export(ctx, src)
	if err != nil {
		return nil, err
	}
	return e.Import(ctx, dst, snap)
}

func (e *Engine) writeDatasources(ctx context.Context, r *run, dst Destination, sources []client.Datasource, idmap *resolve.Map) {
	sem := semaphore.NewWeighted(int64(e.workers))
	var wg sync.WaitGroup
	for _, ds := range sources {
		if ctx.Err() != nil {
			r.skip(TypeDatasource, ds.UID, ds.Name, "cancelled")
			continue
		}
		wg.Add(1)
		go func(ds client.Datasource) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				r.skip(TypeDatasource, ds.UID, ds.Name, "cancelled")
				return
			}
			defer sem.Release(1)
			out, created, err := dst.UpsertDatasource(ctx, sanitize.Datasource(ds))
			if err != nil {
				r.fail(TypeDatasource, ds.UID, ds.Name, err)
				return
			}
			if out.UID != "" && out.UID != ds.UID {
				idmap.Record(ds.UID, out.UID)
			}
			r.done(TypeDatasource, ds.UID, ds.Name, created)
		}(ds)
	}
	wg.Wait()
}

func (e *Engine) writeFolders(ctx context.Context, r *run, dst Destination, levels [][]client.Folder, idmap *resolve.Map) {
	sem := semaphore.NewWeighted(int64(e.workers))
	for _, level := range levels {
		var wg sync.WaitGroup
		for _, f := range level {
			if ctx.Err() != nil {
				r.skip(TypeFolder, f.UID, f.Title, "cancelled")
				continue
			}
			wg.Add(1)
			go func(f client.Folder) {
				defer wg.Done()
				if err := sem.Acquire(ctx, 1); err != nil {
					r.skip(TypeFolder, f.UID, f.Title, "cancelled")
					return
				}
				defer sem.Release(1)
				srcUID := f.UID
				if f.ParentUID != "" {
					if destUID, ok := idmap.Resolve(f.ParentUID); ok {
						f.ParentUID = destUID
					} else {
						e.rootFallback(TypeFolder, srcUID, f.ParentUID)
						f.ParentUID = ""
					}
				}
				out, created, err := dst.UpsertFolder(ctx, sanitize.Folder(f))
				if err != nil {
					r.fail(TypeFolder, srcUID, f.Title, err)
					return
				}
				idmap.Record(srcUID, out.UID)
				r.done(TypeFolder, srcUID, f.Title, created)
			}(f)
		}
		// Parent barrier: children in the next level are not dispatched
		// until every folder in this level has its mapping recorded.
		wg.Wait()
	}
}

func (e *Engine) writeDashboards(ctx context.Context, r *run, dst Destination, dashboards []client.Dashboard, idmap *resolve.Map, known map[string]bool) {
	sem := semaphore.NewWeighted(int64(e.workers))
	var wg sync.WaitGroup
	for _, d := range dashboards {
		if ctx.Err() != nil {
			r.skip(TypeDashboard, d.UID, d.Title, "cancelled")
			continue
		}
		wg.Add(1)
		go func(d client.Dashboard) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				r.skip(TypeDashboard, d.UID, d.Title, "cancelled")
				return
			}
			defer sem.Release(1)
			target := ""
			if d.FolderUID != "" {
				if destUID, ok := idmap.Resolve(d.FolderUID); ok {
					target = destUID
				} else {
					e.rootFallback(TypeDashboard, d.UID, d.FolderUID)
				}
			}
			sanitized := sanitize.Dashboard(d, target)
			for _, ref := range sanitize.ReferencedDatasources(sanitized) {
				if !known[ref] {
					e.log.WithFields(logrus.Fields{
						"phase":      "write",
						"entityType": TypeDashboard,
						"entityKey":  d.UID,
						"datasource": ref,
					}).Warn("dashboard references a datasource outside the migration set")
				}
			}
			_, created, err := dst.UpsertDashboard(ctx, sanitized)
			if err != nil {
				r.fail(TypeDashboard, d.UID, d.Title, err)
				return
			}
			r.done(TypeDashboard, d.UID, d.Title, created)
		}(d)
	}
	wg.Wait()
}

func (e *Engine) rootFallback(t EntityType, uid, wanted string) {
	e.log.WithFields(logrus.Fields{
		"phase":      "write",
		"entityType": t,
		"entityKey":  uid,
		"folder":     wanted,
	}).Warn("folder reference has no destination counterpart; placing at root")
}

// run carries shared write-phase state: the summary, the cancel handle and
// the first auth failure, which aborts everything still undispatched.
type run struct {
	engine *Engine
	sum    *Summary
	cancel context.CancelFunc

	mu      sync.Mutex
	authErr error
}

func (r *run) abort(err error) {
	r.mu.Lock()
	if r.authErr == nil {
		r.authErr = err
	}
	r.mu.Unlock()
	r.cancel()
}

func (r *run) err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.authErr
}

func (r *run) done(t EntityType, uid, title string, created bool) {
	outcome := OutcomeUpdated
	if created {
		outcome = OutcomeCreated
	}
	r.sum.record(Result{Type: t, UID: uid, Title: title, Outcome: outcome})
	r.engine.log.WithFields(logrus.Fields{
		"phase":      "write",
		"entityType": t,
		"entityKey":  uid,
		"outcome":    outcome,
	}).Info("entity written")
}

func (r *run) fail(t EntityType, uid, title string, err error) {
	r.sum.record(Result{Type: t, UID: uid, Title: title, Outcome: OutcomeFailed, Detail: err.Error()})
	r.engine.log.WithFields(logrus.Fields{
		"phase":      "write",
		"entityType": t,
		"entityKey":  uid,
		"outcome":    OutcomeFailed,
		"error":      err.Error(),
	}).Error("entity write failed")
	if client.IsAuth(err) {
		r.abort(err)
	}
}

func (r *run) skip(t EntityType, uid, title, reason string) {
	r.sum.record(Result{Type: t, UID: uid, Title: title, Outcome: OutcomeSkipped, Detail: reason})
	r.engine.log.WithFields(logrus.Fields{
		"phase":      "write",
		"entityType": t,
		"entityKey":  uid,
		"outcome":    OutcomeSkipped,
		"reason":     reason,
	}).Info("entity skipped")
}
