package processing

import (
	"context"

	"github.com/korrelate/ingestcore/internal/model"
	"github.com/korrelate/ingestcore/internal/queue"
)

// Enqueuer is the subset of ProcessingQueue Dispatcher needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, p queue.HeavyLanePayload) (*model.ProcessingJob, error)
}

// Dispatcher is the single place a Document, once persisted, is handed to
// either FastLaneProcessor (run inline) or ProcessingQueue (heavy lane),
// shared by the upload route and FolderSynchronizer so both obey the same
// lane-routing rule.
type Dispatcher struct {
	fastLane *FastLaneProcessor
	queue    Enqueuer
	sm       *StateMachine
}

func NewDispatcher(fastLane *FastLaneProcessor, q Enqueuer, sm *StateMachine) *Dispatcher {
	return &Dispatcher{fastLane: fastLane, queue: q, sm: sm}
}

// Dispatch routes doc according to the lane its format maps to. Fast-lane
// documents are processed synchronously before returning; heavy-lane
// documents are moved to PROCESSING here (mirroring the fast lane's own
// pickup transition) and handed off to the queue, finishing asynchronously
// via CallbackReconciler.
func (d *Dispatcher) Dispatch(ctx context.Context, doc *model.Document, content []byte, lane model.Lane, profile model.ProcessingProfile) error {
	if lane == model.LaneFast {
		d.fastLane.Process(ctx, doc.ID, content, doc.Format, profile)
		return nil
	}

	if doc.Status == model.StatusPending {
		if err := d.sm.Transition(ctx, doc, model.StatusProcessing, TransitionOpts{Reason: "heavy-lane-pickup"}); err != nil {
			return err
		}
	}

	_, err := d.queue.Enqueue(ctx, queue.HeavyLanePayload{
		DocumentID: doc.ID,
		FilePath:   doc.FilePath,
		Format:     doc.Format,
		Profile:    profile,
	})
	return err
}
