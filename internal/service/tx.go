package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/catalog_api/internal/metrics"
	"github.com/GTDGit/catalog_api/internal/models"
	"github.com/GTDGit/catalog_api/internal/store"
)

// inTx runs fn in a transaction and retries transient failures with
// exponential backoff. fn may run more than once, so it must rebuild any
// state it returns through the closure. After the last attempt the failure
// is reported as models.ErrCatalogUnavailable.
func (s *CatalogService) inTx(ctx context.Context, op string, opts store.TxOptions, fn func(ctx context.Context, tx store.Tx) error) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.store.InTx(ctx, opts, fn)
		if err == nil || !s.store.IsRetryable(err) {
			return err
		}
		log.Warn().Err(err).Str("operation", op).Int("attempt", attempt).Msg("transaction failed, retrying")
		if attempt == s.maxAttempts {
			break
		}
		metrics.TxRetriesTotal.WithLabelValues(op).Inc()
		if werr := s.wait(ctx, attempt); werr != nil {
			return werr
		}
	}
	return fmt.Errorf("%w: %s failed after %d attempts: %v", models.ErrCatalogUnavailable, op, s.maxAttempts, err)
}

func (s *CatalogService) wait(ctx context.Context, attempt int) error {
	d := s.backoff << (attempt - 1)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
