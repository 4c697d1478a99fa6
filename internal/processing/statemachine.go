// Package processing implements the StateMachine, FastLaneProcessor, and
// CallbackReconciler components: the three places Document status is
// mutated, all funneled through one canonical transition site.
package processing

import (
	"context"
	"fmt"
	"time"

	"github.com/korrelate/ingestcore/internal/model"
)

// DocStore is the subset of the MetadataStore StateMachine needs.
type DocStore interface {
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	UpdateDocument(ctx context.Context, d *model.Document, prevUpdatedAt time.Time) error
	DeleteChunks(ctx context.Context, documentID string) error
}

// EventEmitter is the subset of EventBus used to announce transitions.
type EventEmitter interface {
	Emit(eventType model.EventType, payload interface{})
}

// StateMachine is the single canonical site that mutates Document.status.
// FastLaneProcessor, CallbackReconciler, and FolderSynchronizer all call
// through here rather than writing status directly.
type StateMachine struct {
	store DocStore
	bus   EventEmitter
}

func NewStateMachine(store DocStore, bus EventEmitter) *StateMachine {
	return &StateMachine{store: store, bus: bus}
}

var validTransitions = map[model.DocumentStatus]map[model.DocumentStatus]bool{
	model.StatusPending: {
		model.StatusProcessing: true,
	},
	model.StatusProcessing: {
		model.StatusCompleted: true,
		model.StatusFailed:    true,
	},
	model.StatusCompleted: {
		model.StatusPending:    true, // sync-driven reprocess only
		model.StatusProcessing: true, // re-entry: clears failure state and drops chunks
	},
	model.StatusFailed: {
		model.StatusProcessing: true, // re-entry: clears failure state and drops chunks
		model.StatusPending:    true, // sync-driven reprocess
		model.StatusCompleted:  true, // sync restore: remote file reappeared with unchanged content
	},
}

// TransitionOpts carries the state-specific data a transition needs.
type TransitionOpts struct {
	FailReason *string // required for -> FAILED
	ChunkCount int     // required > 0 for -> COMPLETED
	Reason     string  // free-text audit note, e.g. "sync-reprocess"
}

// Transition moves doc to newStatus, enforcing the invariants in spec §4.9,
// and retries once on an optimistic-lock conflict before giving up.
func (sm *StateMachine) Transition(ctx context.Context, doc *model.Document, newStatus model.DocumentStatus, opts TransitionOpts) error {
	if !validTransitions[doc.Status][newStatus] {
		return fmt.Errorf("%s: cannot transition %s -> %s", model.ErrStateConflict, doc.Status, newStatus)
	}

	switch newStatus {
	case model.StatusCompleted:
		if opts.ChunkCount <= 0 {
			return fmt.Errorf("cannot transition to COMPLETED with zero chunks")
		}
		doc.ChunkCount = opts.ChunkCount
	case model.StatusFailed:
		if opts.FailReason == nil || *opts.FailReason == "" {
			return fmt.Errorf("cannot transition to FAILED without a failReason")
		}
		doc.FailReason = opts.FailReason
	case model.StatusProcessing:
		if doc.Status == model.StatusCompleted || doc.Status == model.StatusFailed {
			// re-entry from a terminal state clears failure and drops chunks
			doc.FailReason = nil
			doc.ChunkCount = 0
			if err := sm.store.DeleteChunks(ctx, doc.ID); err != nil {
				return err
			}
		}
	}

	prevUpdatedAt := doc.UpdatedAt
	oldStatus := doc.Status
	doc.Status = newStatus

	err := sm.store.UpdateDocument(ctx, doc, prevUpdatedAt)
	if err != nil {
		// retry once
		fresh, getErr := sm.store.GetDocument(ctx, doc.ID)
		if getErr != nil {
			return err
		}
		fresh.Status = newStatus
		if newStatus == model.StatusCompleted {
			fresh.ChunkCount = opts.ChunkCount
		}
		if newStatus == model.StatusFailed {
			fresh.FailReason = opts.FailReason
		}
		if err2 := sm.store.UpdateDocument(ctx, fresh, fresh.UpdatedAt); err2 != nil {
			return fmt.Errorf("%s: %v", model.ErrStateConflict, err2)
		}
		*doc = *fresh
	}

	if sm.bus != nil {
		sm.bus.Emit(model.EventDocumentStatusChanged, map[string]interface{}{
			"documentId": doc.ID,
			"from":       oldStatus,
			"to":         newStatus,
			"reason":     opts.Reason,
		})
	}

	return nil
}
