package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

// Enqueuer is the subset of *asynq.Client used by Bus.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Bus publishes checkout events as asynq tasks.
type Bus struct {
	Client    Enqueuer
	Queue     string
	MaxRetry  int
	Retention time.Duration
}

// Emit publishes payload under topic. dedupeID, when set, becomes the asynq
// task id so repeated emits for the same aggregate collapse into one task.
func (b *Bus) Emit(ctx context.Context, topic, dedupeID string, payload any) error {
	if b == nil || b.Client == nil {
		return errors.New("events: client not configured")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return errors.New("events: topic is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("events: encode payload: %w", err)
	}

	queue := b.Queue
	if queue == "" {
		queue = QueueCheckout
	}
	opts := []asynq.Option{asynq.Queue(queue)}
	if b.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(b.MaxRetry))
	}
	if b.Retention > 0 {
		opts = append(opts, asynq.Retention(b.Retention))
	}
	if dedupeID = strings.TrimSpace(dedupeID); dedupeID != "" {
		opts = append(opts, asynq.TaskID(topic+":"+dedupeID))
	}

	_, err = b.Client.EnqueueContext(ctx, asynq.NewTask(topic, data), opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		return fmt.Errorf("events: enqueue %s: %w", topic, err)
	}
	return nil
}
