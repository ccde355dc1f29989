package task

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Enqueuer is the narrow slice of asynq.Client the services depend on.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type enqueuerImpl struct {
	client *asynq.Client
}

func NewEnqueuer(client *asynq.Client) Enqueuer {
	return &enqueuerImpl{client: client}
}

func (e *enqueuerImpl) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	info, err := e.client.EnqueueContext(context.Background(), task, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task %s: %w", task.Type(), err)
	}
	return info, nil
}

// EnqueueJSON marshals payload and enqueues it under typeName.
func EnqueueJSON(e Enqueuer, typeName string, payload any, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", typeName, err)
	}
	return e.Enqueue(asynq.NewTask(typeName, b), opts...)
}

// DecodePayload unmarshals a task payload, wrapping failures with
// asynq.SkipRetry since a malformed payload never becomes valid.
func DecodePayload(t *asynq.Task, v any) error {
	if err := json.Unmarshal(t.Payload(), v); err != nil {
		return fmt.Errorf("invalid payload for %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return nil
}
