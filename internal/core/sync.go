package core

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"ranchcore/pkg/domain"
)

// SyncOperation is one device-originated mutation in a batch.
type SyncOperation struct {
	Operation  domain.Action   `json:"operation"`
	TableName  string          `json:"table_name"`
	RecordData json.RawMessage `json:"record_data"`
	Timestamp  time.Time       `json:"timestamp"`
}

// SyncBatch is an ordered operation log from a single device.
type SyncBatch struct {
	DeviceID   string          `json:"device_id"`
	Actor      domain.UserRef  `json:"user"`
	Operations []SyncOperation `json:"operations"`
}

// OperationError describes one failed operation, in submission order.
type OperationError struct {
	TableName string `json:"table_name"`
	Operation string `json:"operation"`
	Error     string `json:"error"`
}

// SyncSummary reports the outcome of a batch.
type SyncSummary struct {
	Synced int              `json:"synced"`
	Failed int              `json:"failed"`
	Errors []OperationError `json:"errors"`
}

// Reconciler applies device operation logs against the store. Every
// operation is processed independently: a ledger row is written first, the
// mutation is attempted, and the ledger outcome is recorded. A failure never
// aborts the batch.
type Reconciler struct {
	store  domain.PersistentStore
	logger *zap.Logger
	nowFn  func() time.Time
}

// NewReconciler constructs a reconciler over the given store.
func NewReconciler(store domain.PersistentStore, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		store:  store,
		logger: logger,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the server clock. Intended for tests.
func (r *Reconciler) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		r.nowFn = fn
	}
}

// Reconcile processes the batch sequentially in submission order and returns
// a summary. It never returns a per-operation failure as an error; only a
// store-level fault while writing the ledger itself propagates.
func (r *Reconciler) Reconcile(ctx context.Context, batch SyncBatch) (SyncSummary, error) {
	syncBatchesTotal.Inc()
	summary := SyncSummary{Errors: []OperationError{}}

	log := r.logger.With(
		zap.String("device_id", batch.DeviceID),
		zap.String("user", batch.Actor.Username),
	)
	log.Info("sync batch received", zap.Int("operations", len(batch.Operations)))

	for i, op := range batch.Operations {
		entry, err := r.writeLedgerEntry(ctx, batch, op)
		if err != nil {
			return summary, err
		}

		applyErr := r.applyOperation(ctx, batch.Actor, op)
		if err := r.finishLedgerEntry(ctx, entry.ID, applyErr); err != nil {
			return summary, err
		}

		if applyErr != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, OperationError{
				TableName: op.TableName,
				Operation: string(op.Operation),
				Error:     applyErr.Error(),
			})
			syncOperationsTotal.WithLabelValues("failed").Inc()
			log.Warn("sync operation failed",
				zap.Int("index", i),
				zap.String("table", op.TableName),
				zap.String("operation", string(op.Operation)),
				zap.Error(applyErr),
			)
			continue
		}
		summary.Synced++
		syncOperationsTotal.WithLabelValues("synced").Inc()
	}

	log.Info("sync batch complete", zap.Int("synced", summary.Synced), zap.Int("failed", summary.Failed))
	return summary, nil
}

// writeLedgerEntry persists the immutable request record before any apply
// attempt, in its own transaction so it survives operation failure.
func (r *Reconciler) writeLedgerEntry(ctx context.Context, batch SyncBatch, op SyncOperation) (domain.SyncEntry, error) {
	var entry domain.SyncEntry
	_, err := r.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		entry, err = tx.CreateSyncEntry(domain.SyncEntry{
			DeviceID:   batch.DeviceID,
			UserID:     batch.Actor.ID,
			Operation:  op.Operation,
			TableName:  op.TableName,
			RecordData: op.RecordData,
			Timestamp:  op.Timestamp,
		})
		return err
	})
	return entry, err
}

// applyOperation attempts one mutation in its own transaction. The returned
// error is the per-operation failure recorded in the ledger.
func (r *Reconciler) applyOperation(ctx context.Context, actor domain.UserRef, op SyncOperation) error {
	handler, ok := syncTables[op.TableName]
	if !ok {
		return domain.UnsupportedTableError{Table: op.TableName}
	}

	_, err := r.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		switch op.Operation {
		case domain.ActionCreate:
			return handler.create(tx, actor, op.RecordData)
		case domain.ActionUpdate:
			key, err := payloadKey(op.TableName, handler, op.RecordData)
			if err != nil {
				return err
			}
			return handler.update(tx, actor, key, op.RecordData)
		case domain.ActionDelete:
			key, err := payloadKey(op.TableName, handler, op.RecordData)
			if err != nil {
				return err
			}
			return handler.remove(tx, key)
		default:
			return domain.ValidationError{Entity: handler.entity, Reason: "unknown operation " + string(op.Operation)}
		}
	})
	return err
}

// finishLedgerEntry marks the outcome exactly once: synced with a server
// timestamp on success, error text otherwise.
func (r *Reconciler) finishLedgerEntry(ctx context.Context, entryID string, applyErr error) error {
	now := r.nowFn()
	_, err := r.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateSyncEntry(entryID, func(e *domain.SyncEntry) error {
			if applyErr != nil {
				e.Synced = false
				e.ErrorMessage = applyErr.Error()
				return nil
			}
			e.Synced = true
			e.SyncedAt = &now
			e.ErrorMessage = ""
			return nil
		})
		return err
	})
	return err
}
