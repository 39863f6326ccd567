package notifications

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/angelmondragon/stagecall/pkg/enums"
	"github.com/angelmondragon/stagecall/pkg/logger"
)

// JobPublisher appends a delivery job to the work queue and returns its id.
type JobPublisher interface {
	PublishDelivery(ctx context.Context, userIDs []uuid.UUID, kind enums.NotificationKind, jc JobContext) (string, error)
}

// Enqueuer hands multi-recipient fan-outs to the work queue.
type Enqueuer struct {
	publisher JobPublisher
	logg      *logger.Logger
}

func NewEnqueuer(publisher JobPublisher, logg *logger.Logger) (*Enqueuer, error) {
	if publisher == nil {
		return nil, errors.New("job publisher is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Enqueuer{publisher: publisher, logg: logg}, nil
}

// EnqueueFanOut publishes one delivery job for userIDs. It never fails the
// caller: empty audiences are ignored and publish errors are only logged.
func (q *Enqueuer) EnqueueFanOut(ctx context.Context, userIDs []uuid.UUID, kind enums.NotificationKind, jc JobContext) {
	if len(userIDs) == 0 {
		return
	}
	logCtx := q.logg.WithFields(ctx, map[string]any{
		"kind":       kind.String(),
		"recipients": len(userIDs),
	})
	jobID, err := q.publisher.PublishDelivery(ctx, userIDs, kind, jc)
	if err != nil {
		q.logg.Error(logCtx, "failed to enqueue push notification fan-out", err)
		return
	}
	q.logg.Info(q.logg.WithJobID(logCtx, jobID), "push notification fan-out enqueued")
}
