package application

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"shoppulse-ingest-layer/internal/application/ingest"
	"shoppulse-ingest-layer/internal/domain"
	"shoppulse-ingest-layer/internal/infrastructure/metrics"
	"shoppulse-ingest-layer/internal/ports"
)

// mergeBatchSize caps how many rows are handed to the merge engine at
// once while a stage streams through an export file
const mergeBatchSize = 100

// Orchestrator runs the staged sync pipeline: one bulk export job per
// stage, in the fixed dependency order, each stage reconciled,
// normalized and merged before the next begins. A failed stage aborts
// the stages after it; rows merged before the failure are kept.
type Orchestrator struct {
	exporter   ports.BulkExporter
	store      ports.EntityStore
	tracker    *ProgressTracker
	normalizer *ingest.Normalizer
	reconciler *ingest.Reconciler
	queryFor   func(domain.Stage) string
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// NewOrchestrator creates a sync orchestrator
func NewOrchestrator(
	exporter ports.BulkExporter,
	store ports.EntityStore,
	tracker *ProgressTracker,
	queryFor func(domain.Stage) string,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		exporter:   exporter,
		store:      store,
		tracker:    tracker,
		normalizer: ingest.NewNormalizer(),
		reconciler: ingest.NewReconciler(),
		queryFor:   queryFor,
		metrics:    m,
		logger:     logger,
	}
}

// RunFullSync runs every stage in order for one shop. The first stage
// failure stops the run; later stages stay pending.
func (o *Orchestrator) RunFullSync(ctx context.Context, shop *domain.Shop, accessToken string) error {
	if err := o.tracker.StartRun(ctx, shop.ID); err != nil {
		return err
	}

	for _, stage := range domain.StageOrder() {
		if err := o.RunStage(ctx, shop, accessToken, stage); err != nil {
			runErr := fmt.Errorf("stage %s failed: %w", stage, err)
			if markErr := o.tracker.MarkRunFailed(ctx, shop.ID, runErr); markErr != nil {
				o.logger.Error().Err(markErr).Str("shop_id", shop.ID).Msg("Failed to record run failure")
			}
			o.observeRun("failed")
			return runErr
		}
	}

	if err := o.tracker.MarkRunCompleted(ctx, shop.ID); err != nil {
		return err
	}
	o.observeRun("completed")
	return nil
}

// RunStage executes one stage end to end: submit the export job, poll
// it to a terminal state, stream the result through reconciliation and
// merging. A job that fails but leaves a partial result URL has its
// partial data merged before the stage is marked failed.
func (o *Orchestrator) RunStage(ctx context.Context, shop *domain.Shop, accessToken string, stage domain.Stage) error {
	query := o.queryFor(stage)
	if query == "" {
		return fmt.Errorf("no export query for stage %s", stage)
	}

	if err := o.tracker.MarkStageStarted(ctx, shop.ID, stage); err != nil {
		return err
	}
	start := time.Now()

	fail := func(count int, cause error) error {
		if err := o.tracker.MarkStageFailed(ctx, shop.ID, stage, count, cause); err != nil {
			o.logger.Error().Err(err).Str("shop_id", shop.ID).Msg("Failed to record stage failure")
		}
		o.observeStage(stage, "failed", start)
		return cause
	}

	jobID, err := o.exporter.Submit(ctx, shop.Domain, accessToken, query)
	if err != nil {
		return fail(0, fmt.Errorf("failed to submit export job: %w", err))
	}

	o.logger.Info().
		Str("shop_id", shop.ID).
		Str("stage", string(stage)).
		Str("job_id", jobID).
		Msg("Export job submitted")

	result, err := o.exporter.PollUntilDone(ctx, shop.Domain, accessToken)
	if err != nil {
		return fail(0, err)
	}

	if result.Status != ports.BulkStatusCompleted {
		jobErr := fmt.Errorf("export job %s ended %s", result.JobID, result.Status)
		if result.URL == "" {
			return fail(0, jobErr)
		}
		count, procErr := o.processResult(ctx, shop.ID, stage, result.URL)
		if procErr != nil {
			o.logger.Error().Err(procErr).Str("shop_id", shop.ID).Msg("Failed to process partial export result")
		}
		o.logger.Warn().
			Str("shop_id", shop.ID).
			Str("stage", string(stage)).
			Int("rows", count).
			Msg("Merged partial export result before failing stage")
		return fail(count, jobErr)
	}

	if result.URL == "" {
		// a completed job with no URL exported zero objects
		if err := o.tracker.MarkStageCompleted(ctx, shop.ID, stage, 0); err != nil {
			return err
		}
		o.observeStage(stage, "completed", start)
		return nil
	}

	count, err := o.processResult(ctx, shop.ID, stage, result.URL)
	if err != nil {
		return fail(count, err)
	}

	if err := o.tracker.MarkStageCompleted(ctx, shop.ID, stage, count); err != nil {
		return err
	}
	o.observeStage(stage, "completed", start)
	return nil
}

// processResult streams one export file through the reconciler and the
// merge engine. The returned count is the number of rows of the stage's
// primary entity that merged successfully.
func (o *Orchestrator) processResult(ctx context.Context, shopID string, stage domain.Stage, url string) (int, error) {
	body, err := o.exporter.Download(ctx, url)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	var merged int
	var emit func(ingest.Unit) error

	switch stage {
	case domain.StageCustomers:
		batch := make([]domain.Customer, 0, mergeBatchSize)
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			res, err := o.store.MergeCustomers(ctx, shopID, batch)
			if err != nil {
				return err
			}
			o.observeMerge("customer", res)
			merged += res.Rows()
			batch = batch[:0]
			o.reportProgress(ctx, shopID, stage, merged)
			return nil
		}
		emit = func(u ingest.Unit) error {
			row, err := o.normalizer.Customer(u.Parent)
			if err != nil {
				o.skipRow(shopID, stage, err)
				return nil
			}
			batch = append(batch, row)
			if len(batch) >= mergeBatchSize {
				return flush()
			}
			return nil
		}
		return o.reconcile(shopID, stage, body, emit, &merged, flush)

	case domain.StageProducts:
		batch := make([]domain.Product, 0, mergeBatchSize)
		variants := make([]domain.ProductVariant, 0, mergeBatchSize)
		flush := func() error {
			if len(batch) > 0 {
				res, err := o.store.MergeProducts(ctx, shopID, batch)
				if err != nil {
					return err
				}
				o.observeMerge("product", res)
				merged += res.Rows()
				batch = batch[:0]
			}
			if len(variants) > 0 {
				res, err := o.store.MergeVariants(ctx, shopID, variants)
				if err != nil {
					return err
				}
				o.observeMerge("variant", res)
				variants = variants[:0]
			}
			o.reportProgress(ctx, shopID, stage, merged)
			return nil
		}
		emit = func(u ingest.Unit) error {
			row, err := o.normalizer.Product(u.Parent)
			if err != nil {
				o.skipRow(shopID, stage, err)
				return nil
			}
			batch = append(batch, row)
			for _, child := range u.Children {
				if t := child.GIDType(); t != "" && t != "ProductVariant" {
					continue
				}
				variant, err := o.normalizer.Variant(child, row.ExternalID)
				if err != nil {
					o.skipRow(shopID, stage, err)
					continue
				}
				variants = append(variants, variant)
			}
			if len(batch) >= mergeBatchSize || len(variants) >= mergeBatchSize {
				return flush()
			}
			return nil
		}
		return o.reconcile(shopID, stage, body, emit, &merged, flush)

	case domain.StageOrders:
		batch := make([]domain.Order, 0, mergeBatchSize)
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			res, err := o.store.MergeOrders(ctx, shopID, batch)
			if err != nil {
				return err
			}
			o.observeMerge("order", res)
			merged += res.Rows()
			batch = batch[:0]
			o.reportProgress(ctx, shopID, stage, merged)
			return nil
		}
		emit = func(u ingest.Unit) error {
			row, err := o.normalizer.Order(u.Parent)
			if err != nil {
				o.skipRow(shopID, stage, err)
				return nil
			}
			batch = append(batch, row)
			if len(batch) >= mergeBatchSize {
				return flush()
			}
			return nil
		}
		return o.reconcile(shopID, stage, body, emit, &merged, flush)

	case domain.StageLineItems:
		batch := make([]domain.OrderLineItem, 0, mergeBatchSize)
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			res, err := o.store.MergeLineItems(ctx, shopID, batch)
			if err != nil {
				return err
			}
			o.observeMerge("line_item", res)
			merged += res.Rows()
			batch = batch[:0]
			o.reportProgress(ctx, shopID, stage, merged)
			return nil
		}
		emit = func(u ingest.Unit) error {
			// the parent order was already merged in the orders stage
			orderID, err := u.Parent.ExternalID()
			if err != nil {
				o.skipRow(shopID, stage, err)
				return nil
			}
			for _, child := range u.Children {
				item, err := o.normalizer.LineItem(child, orderID)
				if err != nil {
					o.skipRow(shopID, stage, err)
					continue
				}
				batch = append(batch, item)
			}
			if len(batch) >= mergeBatchSize {
				return flush()
			}
			return nil
		}
		return o.reconcile(shopID, stage, body, emit, &merged, flush)

	default:
		return 0, fmt.Errorf("unknown stage %s", stage)
	}
}

func (o *Orchestrator) reconcile(shopID string, stage domain.Stage, body io.Reader, emit func(ingest.Unit) error, merged *int, flush func() error) (int, error) {
	stats, err := o.reconciler.Reconcile(body, emit)
	if err != nil {
		return *merged, err
	}
	if err := flush(); err != nil {
		return *merged, err
	}

	if stats.OrphanedChildren > 0 {
		o.logger.Warn().
			Str("shop_id", shopID).
			Str("stage", string(stage)).
			Int("orphans", stats.OrphanedChildren).
			Msg("Dropped child records whose parent never appeared")
	}
	if o.metrics != nil {
		o.metrics.OrphansDropped.WithLabelValues(string(stage)).Add(float64(stats.OrphanedChildren))
		o.metrics.MalformedLines.WithLabelValues(string(stage)).Add(float64(stats.MalformedLines))
	}

	o.logger.Info().
		Str("shop_id", shopID).
		Str("stage", string(stage)).
		Int("lines", stats.Lines).
		Int("merged", *merged).
		Msg("Export result processed")

	return *merged, nil
}

// reportProgress pushes the running merge count into the tracker so a
// long stage shows movement between batches. Failures here never fail
// the stage.
func (o *Orchestrator) reportProgress(ctx context.Context, shopID string, stage domain.Stage, count int) {
	if err := o.tracker.MarkStageProgress(ctx, shopID, stage, count); err != nil {
		o.logger.Warn().
			Err(err).
			Str("shop_id", shopID).
			Str("stage", string(stage)).
			Msg("Failed to record stage progress")
	}
}

func (o *Orchestrator) skipRow(shopID string, stage domain.Stage, err error) {
	o.logger.Warn().
		Err(err).
		Str("shop_id", shopID).
		Str("stage", string(stage)).
		Msg("Skipping unmappable record")
	if o.metrics != nil {
		o.metrics.MalformedLines.WithLabelValues(string(stage)).Inc()
	}
}

func (o *Orchestrator) observeMerge(entityType string, res domain.MergeResult) {
	if o.metrics == nil {
		return
	}
	o.metrics.RowsMerged.WithLabelValues(entityType, "inserted").Add(float64(res.Inserted))
	o.metrics.RowsMerged.WithLabelValues(entityType, "updated").Add(float64(res.Updated))
	o.metrics.RowsMerged.WithLabelValues(entityType, "error").Add(float64(res.Errors))
}

func (o *Orchestrator) observeStage(stage domain.Stage, status string, start time.Time) {
	if o.metrics == nil {
		return
	}
	o.metrics.StageDuration.WithLabelValues(string(stage), status).Observe(time.Since(start).Seconds())
}

func (o *Orchestrator) observeRun(status string) {
	if o.metrics == nil {
		return
	}
	o.metrics.SyncRuns.WithLabelValues(status).Inc()
}
