package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ebarangay/registry-system/internal/api/metrics"
	"github.com/ebarangay/registry-system/internal/core/domain"
	"github.com/ebarangay/registry-system/internal/core/ports"
)

const (
	defaultMaxAttempts = 4
	defaultBaseDelay   = 150 * time.Millisecond
)

// SafeWriter wraps raw document-store updates with the layered fallback that
// makes concurrent writers and schema drift safe:
//
//  1. change-detection short-circuit (skip the write when the store already
//     matches the desired fields)
//  2. direct write
//  3. on conflict: re-fetch; converge silently when another writer applied
//     the same state, otherwise retry with exponential backoff
//  4. on schema mismatch: filter the field set down to the collection's
//     known attributes and retry once
//  5. post-write verification of the echoed document
//
// Unauthorized errors are never retried; they indicate an expired session
// and must bubble up unchanged.
type SafeWriter struct {
	store       ports.DocumentStore
	log         zerolog.Logger
	maxAttempts int
	baseDelay   time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewSafeWriter creates a SafeWriter with default retry settings.
func NewSafeWriter(store ports.DocumentStore, log zerolog.Logger) *SafeWriter {
	return &SafeWriter{
		store:       store,
		log:         log,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		sleep:       sleepCtx,
	}
}

// writeOutcome is the decision taken after classifying an update error.
type writeOutcome int

const (
	outcomeDone writeOutcome = iota
	outcomeRetry
	outcomeFilterSchema
	outcomeFail
)

// classify maps a store error to the next ladder step.
func classify(err error) writeOutcome {
	switch {
	case err == nil:
		return outcomeDone
	case errors.Is(err, domain.ErrUnauthorized):
		return outcomeFail
	case errors.Is(err, domain.ErrConflict):
		return outcomeRetry
	case errors.Is(err, domain.ErrSchemaMismatch):
		return outcomeFilterSchema
	default:
		return outcomeFail
	}
}

// Update applies the desired fields to the document, running the full
// fallback ladder. On success it returns the store's view of the document;
// if the store echoed values that differ from what was written, the document
// is returned together with an error wrapping domain.ErrWriteMismatch.
func (w *SafeWriter) Update(ctx context.Context, collection, id string, desired map[string]any) (*ports.Document, error) {
	// Step 1: change detection. A failed fetch is logged and ignored; the
	// write itself decides whether the document exists.
	current, err := w.store.Get(ctx, collection, id)
	if err == nil && fieldsMatch(current.Fields, desired) {
		w.log.Debug().Str("collection", collection).Str("id", id).Msg("update short-circuited, no changes")
		return current, nil
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		w.log.Warn().Err(err).Str("collection", collection).Str("id", id).Msg("pre-update fetch failed, attempting write anyway")
	}

	fields := desired
	delay := w.baseDelay
	schemaFiltered := false
	var lastErr error

	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		doc, updateErr := w.store.Update(ctx, collection, id, fields)

		switch classify(updateErr) {
		case outcomeDone:
			return doc, w.verify(collection, id, doc, fields)

		case outcomeRetry:
			lastErr = updateErr
			// Another writer may have already applied the same state; that
			// is convergence, not an error.
			if cur, getErr := w.store.Get(ctx, collection, id); getErr == nil && fieldsMatch(cur.Fields, fields) {
				w.log.Info().Str("collection", collection).Str("id", id).Msg("conflicting writer applied identical state, converged")
				return cur, nil
			}
			if attempt == w.maxAttempts {
				return nil, fmt.Errorf("update %s/%s: attempts exhausted: %w", collection, id, lastErr)
			}
			metrics.UpdateRetriesTotal.Inc()
			w.log.Warn().Err(updateErr).Str("collection", collection).Str("id", id).
				Int("attempt", attempt).Dur("backoff", delay).Msg("conflict, retrying")
			if sleepErr := w.sleep(ctx, delay); sleepErr != nil {
				return nil, sleepErr
			}
			delay *= 2

		case outcomeFilterSchema:
			if schemaFiltered {
				return nil, fmt.Errorf("update %s/%s: schema mismatch persists after filtering: %w", collection, id, updateErr)
			}
			schemaFiltered = true
			filtered, filterErr := w.filterToSchema(ctx, collection, fields)
			if filterErr != nil {
				return nil, filterErr
			}
			if len(filtered) == 0 {
				return nil, fmt.Errorf("update %s/%s: %w", collection, id, domain.ErrNoValidAttributes)
			}
			metrics.SchemaFallbacksTotal.Inc()
			w.log.Warn().Str("collection", collection).Str("id", id).
				Int("dropped", len(fields)-len(filtered)).Msg("schema drift detected, retrying with filtered fields")
			fields = filtered

		case outcomeFail:
			return nil, updateErr
		}
	}

	return nil, lastErr
}

// filterToSchema keeps only fields whose keys the collection currently accepts.
func (w *SafeWriter) filterToSchema(ctx context.Context, collection string, fields map[string]any) (map[string]any, error) {
	attrs, err := w.store.Attributes(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("introspect %s attributes: %w", collection, err)
	}
	known := make(map[string]struct{}, len(attrs))
	for _, a := range attrs {
		known[a] = struct{}{}
	}
	filtered := make(map[string]any, len(fields))
	for k, v := range fields {
		if _, ok := known[k]; ok {
			filtered[k] = v
		}
	}
	return filtered, nil
}

// verify compares the echoed document against the written fields. A mismatch
// is reported, not swallowed: callers must be able to tell "wrote" apart
// from "wrote but the store echoed something else".
func (w *SafeWriter) verify(collection, id string, doc *ports.Document, written map[string]any) error {
	if doc == nil {
		return nil
	}
	var mismatched []string
	for k, v := range written {
		if !valueEqual(doc.Fields[k], v) {
			mismatched = append(mismatched, k)
		}
	}
	if len(mismatched) == 0 {
		return nil
	}
	sort.Strings(mismatched)
	w.log.Error().Str("collection", collection).Str("id", id).
		Strs("fields", mismatched).Msg("post-write verification failed")
	return fmt.Errorf("update %s/%s: fields %s: %w", collection, id, strings.Join(mismatched, ","), domain.ErrWriteMismatch)
}

// fieldsMatch reports whether every desired field already holds the desired
// value in current.
func fieldsMatch(current, desired map[string]any) bool {
	for k, v := range desired {
		if !valueEqual(current[k], v) {
			return false
		}
	}
	return true
}

// valueEqual compares two field values. Times are compared at millisecond
// precision since the store truncates them on the round trip.
func valueEqual(a, b any) bool {
	at, aok := a.(time.Time)
	bt, bok := b.(time.Time)
	if aok && bok {
		return at.Truncate(time.Millisecond).Equal(bt.Truncate(time.Millisecond))
	}
	if aok != bok {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// sleepCtx blocks for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
