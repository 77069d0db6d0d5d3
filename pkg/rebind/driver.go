package rebind

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openmast/openmast/pkg/ha"
	"github.com/openmast/openmast/pkg/memento"
	"github.com/openmast/openmast/pkg/mgmt"
	"github.com/openmast/openmast/pkg/model"
	"github.com/openmast/openmast/pkg/policy"
	"github.com/openmast/openmast/pkg/stores"
	"github.com/openmast/openmast/pkg/telemetry"
)

// Options tunes a restore.
type Options struct {
	// Strict aborts the whole restore on the first excluded document
	// instead of reporting partial results.
	Strict bool

	// MaxParallel bounds the number of concurrent document decoders.
	// Defaults to 8.
	MaxParallel int

	// WaitForMaster makes the attach phase wait until this node holds HA
	// mastership before flipping objects live.
	WaitForMaster bool

	// MasterDeadline bounds the mastership wait. Defaults to 2 minutes.
	MasterDeadline time.Duration

	// MasterPollInterval is how often mastership is re-checked while
	// waiting. Defaults to 250ms.
	MasterPollInterval time.Duration
}

// ObjectFailure names one document that could not be restored.
type ObjectFailure struct {
	// ObjectID is the document's managed-object ID.
	ObjectID string

	// Kind is the document's kind as persisted.
	Kind string

	// Err is why the document was excluded.
	Err error
}

// Report is the outcome of one restore.
type Report struct {
	// RestoreID identifies this restore in logs and traces.
	RestoreID string

	// Restored is the number of objects now live in the graph.
	Restored int

	// Excluded lists the documents that could not be restored.
	Excluded []ObjectFailure

	// Warnings lists non-fatal per-field findings across all documents.
	Warnings []string

	// Duration is the wall-clock time of the restore.
	Duration time.Duration
}

// Driver runs restores and snapshots against one management context.
type Driver struct {
	logger zerolog.Logger
	store  stores.SnapshotStore
	codec  *memento.Codec
	mctx   *mgmt.LocalManagementContext
	gate   *policy.Gate
	mon    ha.Monitor
	opts   Options
}

// DriverDeps carries the collaborators a driver fronts.
type DriverDeps struct {
	// Store is the snapshot document store. Required.
	Store stores.SnapshotStore

	// Codec converts between objects and mementos. Required.
	Codec *memento.Codec

	// Context is the real management context restored objects attach to.
	// Required.
	Context *mgmt.LocalManagementContext

	// Gate admits or excludes documents before decoding. Optional.
	Gate *policy.Gate

	// Monitor is consulted when Options.WaitForMaster is set. Optional;
	// without one the wait is skipped.
	Monitor ha.Monitor

	// Logger is the base logger.
	Logger zerolog.Logger

	// Options tunes restores run by this driver.
	Options Options
}

// NewDriver creates a restore/snapshot driver.
func NewDriver(deps DriverDeps) (*Driver, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("snapshot store is required")
	}
	if deps.Codec == nil {
		return nil, fmt.Errorf("memento codec is required")
	}
	if deps.Context == nil {
		return nil, fmt.Errorf("management context is required")
	}
	opts := deps.Options
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 8
	}
	if opts.MasterDeadline <= 0 {
		opts.MasterDeadline = 2 * time.Minute
	}
	if opts.MasterPollInterval <= 0 {
		opts.MasterPollInterval = 250 * time.Millisecond
	}
	return &Driver{
		logger: deps.Logger.With().Str("component", "rebind-driver").Logger(),
		store:  deps.Store,
		codec:  deps.Codec,
		mctx:   deps.Context,
		gate:   deps.Gate,
		mon:    deps.Monitor,
		opts:   opts,
	}, nil
}

// decodeOutcome is one worker's result for one document.
type decodeOutcome struct {
	doc      *stores.Document
	obj      model.ManagedObject
	warnings []string
	err      error
}

// Restore reads every persisted document, rebuilds the object graph, and
// attaches it to the management context. The four phases are: admission,
// skeleton materialization, concurrent decode, attach.
func (d *Driver) Restore(ctx context.Context) (*Report, error) {
	restoreID := uuid.New().String()
	mode := "lenient"
	if d.opts.Strict {
		mode = "strict"
	}
	ctx = telemetry.WithRestoreContext(ctx, restoreID, mode)
	start := time.Now()
	report := &Report{RestoreID: restoreID}

	logger := d.logger.With().Str("restore", restoreID).Logger()
	logger.Info().Str("mode", mode).Msg("restore starting")

	docs, err := d.store.ListAll(ctx)
	if err != nil {
		telemetry.EndRestoreContext(ctx, "failed", err)
		return nil, fmt.Errorf("listing snapshot documents: %w", err)
	}

	admitted, excluded := d.admit(ctx, docs, logger)
	report.Excluded = append(report.Excluded, excluded...)
	if d.opts.Strict && len(excluded) > 0 {
		err := d.abort(excluded)
		telemetry.EndRestoreContext(ctx, "aborted", err)
		report.Duration = time.Since(start)
		return report, err
	}

	// Every admitted ID and its kind must be resolvable before any
	// document is decoded, so references resolve regardless of decode
	// order.
	known := make(map[string]model.Kind, len(admitted))
	for _, doc := range admitted {
		known[doc.ObjectID] = model.Kind(doc.Kind)
	}
	lc := newLookupContext(fmt.Sprintf("restore %s", restoreID), known, d.mctx, d.logger)

	outcomes := d.decodeAll(ctx, admitted, lc)

	var restored []model.ManagedObject
	for _, out := range outcomes {
		if out.err != nil {
			logger.Error().Err(out.err).
				Str("object", out.doc.ObjectID).
				Str("kind", out.doc.Kind).
				Msg("document excluded from restore")
			report.Excluded = append(report.Excluded, ObjectFailure{
				ObjectID: out.doc.ObjectID,
				Kind:     out.doc.Kind,
				Err:      out.err,
			})
			continue
		}
		report.Warnings = append(report.Warnings, out.warnings...)
		restored = append(restored, out.obj)
	}

	if d.opts.Strict && len(report.Excluded) > 0 {
		err := d.abort(report.Excluded)
		telemetry.EndRestoreContext(ctx, "aborted", err)
		report.Duration = time.Since(start)
		lc.release()
		return report, err
	}

	if err := d.awaitMastership(ctx); err != nil {
		telemetry.EndRestoreContext(ctx, "failed", err)
		report.Duration = time.Since(start)
		lc.release()
		return report, err
	}

	for _, obj := range restored {
		if err := d.attach(obj, lc); err != nil {
			logger.Error().Err(err).
				Str("object", obj.ID()).
				Msg("failed to attach restored object")
			report.Excluded = append(report.Excluded, ObjectFailure{
				ObjectID: obj.ID(),
				Kind:     string(obj.Kind()),
				Err:      err,
			})
			continue
		}
		report.Restored++
	}

	d.mctx.RebindComplete()
	lc.release()

	report.Duration = time.Since(start)
	status := "ok"
	if len(report.Excluded) > 0 {
		status = "partial"
	}
	logger.Info().
		Int("restored", report.Restored).
		Int("excluded", len(report.Excluded)).
		Int("warnings", len(report.Warnings)).
		Dur("duration", report.Duration).
		Msg("restore finished")
	telemetry.EndRestoreContext(ctx, status, nil)
	return report, nil
}

// admit runs the policy gate over every document.
func (d *Driver) admit(ctx context.Context, docs []*stores.Document, logger zerolog.Logger) (admitted []*stores.Document, excluded []ObjectFailure) {
	if d.gate == nil {
		return docs, nil
	}
	for _, doc := range docs {
		decision, err := d.gate.Admit(ctx, doc, d.opts.Strict)
		if err != nil {
			excluded = append(excluded, ObjectFailure{
				ObjectID: doc.ObjectID,
				Kind:     doc.Kind,
				Err:      fmt.Errorf("admission evaluation: %w", err),
			})
			continue
		}
		for _, w := range decision.Warnings {
			logger.Warn().
				Str("object", doc.ObjectID).
				Str("policy", w.Policy).
				Msg(w.Message)
		}
		if !decision.Allowed {
			excluded = append(excluded, ObjectFailure{
				ObjectID: doc.ObjectID,
				Kind:     doc.Kind,
				Err:      fmt.Errorf("excluded by admission policy: %s", firstViolation(decision)),
			})
			continue
		}
		admitted = append(admitted, doc)
	}
	return admitted, excluded
}

func firstViolation(decision *policy.Decision) string {
	if len(decision.Violations) == 0 {
		return "policy violation"
	}
	return decision.Violations[0].Message
}

// decodeAll runs the bounded worker pool over the admitted documents.
// Results carry per-document outcomes; ordering is not significant.
func (d *Driver) decodeAll(ctx context.Context, docs []*stores.Document, lc *lookupContext) []decodeOutcome {
	jobs := make(chan *stores.Document)
	results := make(chan decodeOutcome, len(docs))

	var wg sync.WaitGroup
	workers := d.opts.MaxParallel
	if workers > len(docs) {
		workers = len(docs)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for doc := range jobs {
				results <- d.decodeOne(ctx, doc, lc)
			}
		}()
	}

	for _, doc := range docs {
		jobs <- doc
	}
	close(jobs)
	wg.Wait()
	close(results)

	outcomes := make([]decodeOutcome, 0, len(docs))
	for out := range results {
		outcomes = append(outcomes, out)
	}
	return outcomes
}

// decodeOne parses and restores a single document.
func (d *Driver) decodeOne(ctx context.Context, doc *stores.Document, lc *lookupContext) decodeOutcome {
	out := decodeOutcome{doc: doc}
	out.err = telemetry.RecordDocumentDecode(ctx, doc.ObjectID, doc.Kind, func(ctx context.Context) error {
		var m memento.Memento
		if err := json.Unmarshal(doc.Body, &m); err != nil {
			return fmt.Errorf("parsing memento: %w", err)
		}
		if m.ID != doc.ObjectID {
			return fmt.Errorf("document %s carries memento for %s", doc.ObjectID, m.ID)
		}
		result, err := d.codec.Restore(&m, lc)
		if err != nil {
			return err
		}
		out.obj = result.Object
		out.warnings = result.Warnings
		return nil
	})
	return out
}

// awaitMastership blocks until the node holds HA mastership or the
// deadline expires.
func (d *Driver) awaitMastership(ctx context.Context) error {
	if !d.opts.WaitForMaster || d.mon == nil {
		return nil
	}
	if d.mon.IsMaster() {
		return nil
	}
	d.logger.Info().
		Dur("deadline", d.opts.MasterDeadline).
		Msg("waiting for HA mastership before attaching restored objects")

	deadline := time.NewTimer(d.opts.MasterDeadline)
	defer deadline.Stop()
	tick := time.NewTicker(d.opts.MasterPollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("node did not gain mastership within %s (state %s)",
				d.opts.MasterDeadline, d.mon.CurrentNodeState())
		case <-tick.C:
			if d.mon.IsMaster() {
				return nil
			}
		}
	}
}

// attach flips one restored object live: starting, facade bound to the
// real context, registry swap, started.
func (d *Driver) attach(obj model.ManagedObject, lc *lookupContext) error {
	obj.SetState(model.StateStarting)
	if facade, ok := lc.facade(obj.ID()); ok {
		if err := facade.SetManagementContext(d.mctx); err != nil {
			return err
		}
	}
	if _, err := d.mctx.Manage(obj); err != nil {
		return err
	}
	return nil
}

// abort wraps the excluded set into the strict-mode failure. The first
// exclusion is carried as the cause.
func (d *Driver) abort(excluded []ObjectFailure) error {
	err := mgmt.NewPartialRestoreError(excluded[0].ObjectID, excluded[0].Err)
	err.Message = fmt.Sprintf("strict restore aborted, %d document(s) excluded", len(excluded))
	return err
}

// Snapshot serializes the whole live graph into the store and removes
// documents for objects that no longer exist.
func (d *Driver) Snapshot(ctx context.Context, reason string) (int, error) {
	var written int
	err := telemetry.RecordSnapshotPass(ctx, reason, func(ctx context.Context) (int, error) {
		live := make(map[string]struct{})

		// Kinds are written in persistence order so a reader encounters
		// catalog items before the objects instantiated from them.
		for _, kind := range model.AllKinds() {
			for _, obj := range d.mctx.Registry().List(kind) {
				data, err := d.codec.Serialize(obj)
				if err != nil {
					return written, fmt.Errorf("serializing %s %s: %w", kind, obj.ID(), err)
				}
				doc := &stores.Document{
					ObjectID:      obj.ID(),
					Kind:          string(kind),
					Type:          obj.TypeName(),
					CatalogItemID: obj.CatalogItemID(),
					Body:          data,
				}
				if err := d.store.Put(ctx, doc); err != nil {
					return written, fmt.Errorf("writing document for %s: %w", obj.ID(), err)
				}
				live[obj.ID()] = struct{}{}
				written++
			}
		}

		// Remove stale documents.
		existing, err := d.store.ListAll(ctx)
		if err != nil {
			return written, fmt.Errorf("listing documents for stale sweep: %w", err)
		}
		for _, doc := range existing {
			if _, ok := live[doc.ObjectID]; ok {
				continue
			}
			if err := d.store.Delete(ctx, doc.ObjectID); err != nil {
				return written, fmt.Errorf("deleting stale document %s: %w", doc.ObjectID, err)
			}
			d.logger.Debug().
				Str("object", doc.ObjectID).
				Msg("removed stale snapshot document")
		}

		d.logger.Info().
			Int("documents", written).
			Str("reason", reason).
			Msg("snapshot written")
		return written, nil
	})
	return written, err
}
