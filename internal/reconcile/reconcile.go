// Package reconcile matches a contact's declared identifier (RUT) against
// the external record store, creating a record when no match exists.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
)

// candidatePageSize bounds the lookup scan. Duplicate records beyond the
// first match are neither detected nor merged.
const candidatePageSize = 500

// Record is the core's view of a CRM record.
type Record struct {
	ID         string
	Name       string
	Identifier string
	Phone      string
}

// RecordStore is the mutation/query surface the reconciler needs from the
// CRM. Both operations must be safe to repeat.
type RecordStore interface {
	// ListRecords returns up to limit records in stable store order.
	ListRecords(ctx context.Context, limit int) ([]Record, error)
	// CreateRecord creates a record and returns its id. The identifier is
	// stored raw, as the contact declared it.
	CreateRecord(ctx context.Context, name, identifier, phone string) (string, error)
}

// Normalize canonicalizes an identifier for comparison: separator
// punctuation and spaces are stripped and letters uppercased. The raw form
// is what gets stored; Normalize output is never persisted.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// Result reports the reconciliation outcome: either a resolved record id, or
// Pending, meaning no record matched and the caller must collect a display
// name before creating one.
type Result struct {
	RecordID string
	Pending  bool
}

// Reconciler resolves declared identifiers against a RecordStore.
type Reconciler struct {
	store  RecordStore
	logger *slog.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(log *slog.Logger, store RecordStore) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		store:  store,
		logger: log.With(slog.String("service", "reconcile")),
	}
}

// Reconcile looks the declared identifier up in the record store. A match is
// found by scanning a bounded page and comparing normalized identifiers;
// the first match in scan order wins. Lookup performs no writes, so it is
// idempotent and safe to retry on the next inbound message.
func (r *Reconciler) Reconcile(ctx context.Context, declared string) (Result, error) {
	normalized := Normalize(declared)
	if normalized == "" {
		return Result{Pending: true}, nil
	}
	records, err := r.store.ListRecords(ctx, candidatePageSize)
	if err != nil {
		return Result{}, fmt.Errorf("list records: %w", err)
	}
	for _, rec := range records {
		if Normalize(rec.Identifier) == normalized {
			r.logger.Debug("identifier matched existing record",
				slog.String("record_id", rec.ID))
			return Result{RecordID: rec.ID}, nil
		}
	}
	return Result{Pending: true}, nil
}

// CreateRecord finishes the pending branch once the contact's name is known.
// It re-checks for a match first so that a retried message cannot create a
// second record for the same identifier.
func (r *Reconciler) CreateRecord(ctx context.Context, name, rawIdentifier, phone string) (string, error) {
	res, err := r.Reconcile(ctx, rawIdentifier)
	if err != nil {
		return "", err
	}
	if !res.Pending {
		r.logger.Info("record appeared before create, reusing",
			slog.String("record_id", res.RecordID))
		return res.RecordID, nil
	}
	id, err := r.store.CreateRecord(ctx, name, rawIdentifier, phone)
	if err != nil {
		return "", fmt.Errorf("create record: %w", err)
	}
	return id, nil
}
