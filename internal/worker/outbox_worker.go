package worker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/catalog_api/internal/events"
	"github.com/GTDGit/catalog_api/internal/metrics"
	"github.com/GTDGit/catalog_api/internal/store"
)

// outboxTx locks the batch it reads; other workers skip locked rows.
var outboxTx = store.TxOptions{Isolation: sql.LevelReadCommitted}

// OutboxWorker publishes catalog events written by the service and marks them
// published. Delivery is at least once: a crash between publish and commit
// republishes the batch.
type OutboxWorker struct {
	store     store.Store
	publisher events.Publisher
	interval  time.Duration
	batchSize int
}

// NewOutboxWorker constructs an OutboxWorker.
func NewOutboxWorker(st store.Store, publisher events.Publisher, interval time.Duration, batchSize int) *OutboxWorker {
	return &OutboxWorker{
		store:     st,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Start begins the periodic publish loop until context is canceled.
func (w *OutboxWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Int("batch_size", w.batchSize).Msg("Starting outbox worker")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.drain(ctx)
		case <-ctx.Done():
			log.Info().Msg("Outbox worker stopped")
			return
		}
	}
}

// drain publishes full batches back to back until the outbox is empty.
func (w *OutboxWorker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := w.RunOnce(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Failed to publish catalog events")
			return
		}
		if n < w.batchSize {
			return
		}
	}
}

// RunOnce publishes one batch and returns how many events it published.
func (w *OutboxWorker) RunOnce(ctx context.Context) (int, error) {
	var published int
	err := w.store.InTx(ctx, outboxTx, func(ctx context.Context, tx store.Tx) error {
		published = 0
		batch, err := tx.Events().ListUnpublished(ctx, w.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		if err := w.publisher.Publish(ctx, batch); err != nil {
			metrics.EventsPublishedTotal.WithLabelValues("error").Add(float64(len(batch)))
			return fmt.Errorf("publish %d events: %w", len(batch), err)
		}

		ids := make([]int64, len(batch))
		for i, e := range batch {
			ids[i] = e.ID
		}
		if err := tx.Events().MarkPublished(ctx, ids); err != nil {
			return err
		}
		published = len(batch)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if published > 0 {
		metrics.EventsPublishedTotal.WithLabelValues("ok").Add(float64(published))
		log.Debug().Int("count", published).Msg("Published catalog events")
	}
	return published, nil
}
