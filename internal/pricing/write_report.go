package pricing

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/pharma-erp/backend/internal/store"
)

// BatchWriteError records a single failed batch write.
type BatchWriteError struct {
	BatchID string `json:"batchId"`
	Err     error  `json:"-"`
	Message string `json:"error"`
}

func (e BatchWriteError) Error() string {
	return "batch " + e.BatchID + ": " + e.Message
}

// WriteReport is the outcome of one propagation run. Batch writes are
// independent and the store offers no cross-batch transaction, so a run can
// end partially applied: every write is attempted, none is rolled back, and
// failures are listed here for the caller to retry.
type WriteReport struct {
	Succeeded []string          `json:"succeeded"`
	Failed    []BatchWriteError `json:"failed"`
}

// Ok reports whether every attempted write succeeded.
func (r *WriteReport) Ok() bool {
	return len(r.Failed) == 0
}

// Merge folds another report into this one.
func (r *WriteReport) Merge(other *WriteReport) {
	if other == nil {
		return
	}
	r.Succeeded = append(r.Succeeded, other.Succeeded...)
	r.Failed = append(r.Failed, other.Failed...)
}

type batchUpdate struct {
	batchID string
	fields  map[string]any
}

type batchOutcome struct {
	batchID string
	err     error
}

type batchWriter struct {
	store store.Store
}

func newBatchWriter(st store.Store) *batchWriter {
	return &batchWriter{store: st}
}

// apply fires one independent update per batch and collects every outcome;
// one failure does not stop sibling writes.
func (w *batchWriter) apply(ctx context.Context, updates []batchUpdate) *WriteReport {
	report := &WriteReport{}
	if len(updates) == 0 {
		return report
	}

	var (
		wg        sync.WaitGroup
		outcomeCh = make(chan batchOutcome, len(updates))
	)

	for _, update := range updates {
		wg.Add(1)
		go func(u batchUpdate) {
			defer wg.Done()

			err := w.store.UpdateByID(ctx, store.CollectionInventoryBatches, u.batchID, u.fields)
			outcomeCh <- batchOutcome{batchID: u.batchID, err: err}
		}(update)
	}

	go func() {
		wg.Wait()
		close(outcomeCh)
	}()

	for outcome := range outcomeCh {
		if outcome.err != nil {
			log.Error().Err(outcome.err).Str("batch_id", outcome.batchID).Msg("batch price write failed")
			report.Failed = append(report.Failed, BatchWriteError{
				BatchID: outcome.batchID,
				Err:     outcome.err,
				Message: outcome.err.Error(),
			})
			continue
		}
		report.Succeeded = append(report.Succeeded, outcome.batchID)
	}

	sort.Strings(report.Succeeded)
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].BatchID < report.Failed[j].BatchID })

	return report
}
