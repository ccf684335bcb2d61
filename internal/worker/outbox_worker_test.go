package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/catalog_api/internal/models"
	"github.com/GTDGit/catalog_api/internal/store"
	"github.com/GTDGit/catalog_api/internal/store/memstore"
)

type fakePublisher struct {
	batches [][]models.CatalogEvent
	err     error
}

func (p *fakePublisher) Publish(_ context.Context, events []models.CatalogEvent) error {
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, events)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func seedEvents(t *testing.T, st *memstore.Store, n int) {
	t.Helper()
	err := st.InTx(context.Background(), store.Serializable, func(ctx context.Context, tx store.Tx) error {
		for i := 0; i < n; i++ {
			ev, err := models.NewCatalogEvent(models.EventProductCreated, int64(i+1), map[string]int{"n": i})
			if err != nil {
				return err
			}
			if err := tx.Events().Append(ctx, ev); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func unpublished(t *testing.T, st *memstore.Store) int {
	t.Helper()
	var n int
	err := st.InTx(context.Background(), store.ReadCommitted, func(ctx context.Context, tx store.Tx) error {
		evs, err := tx.Events().ListUnpublished(ctx, 0)
		n = len(evs)
		return err
	})
	require.NoError(t, err)
	return n
}

func TestOutboxRunOnce(t *testing.T) {
	st := memstore.New()
	seedEvents(t, st, 5)
	pub := &fakePublisher{}
	w := NewOutboxWorker(st, pub, time.Second, 3)

	n, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, unpublished(t, st))

	n, err = w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	require.Len(t, pub.batches, 2)
	assert.Equal(t, int64(1), pub.batches[0][0].AggregateID)
	assert.Equal(t, int64(4), pub.batches[1][0].AggregateID)
}

func TestOutboxPublishFailureKeepsEvents(t *testing.T) {
	st := memstore.New()
	seedEvents(t, st, 2)
	w := NewOutboxWorker(st, &fakePublisher{err: errors.New("broker down")}, time.Second, 10)

	_, err := w.RunOnce(context.Background())
	assert.ErrorContains(t, err, "broker down")
	assert.Equal(t, 2, unpublished(t, st))
}

func TestOutboxDrain(t *testing.T) {
	st := memstore.New()
	seedEvents(t, st, 7)
	pub := &fakePublisher{}
	w := NewOutboxWorker(st, pub, time.Second, 3)

	w.drain(context.Background())
	assert.Zero(t, unpublished(t, st))
	assert.Len(t, pub.batches, 3)
}

func TestOutboxStartStops(t *testing.T) {
	st := memstore.New()
	seedEvents(t, st, 1)
	pub := &fakePublisher{}
	w := NewOutboxWorker(st, pub, 5*time.Millisecond, 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return unpublished(t, st) == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
