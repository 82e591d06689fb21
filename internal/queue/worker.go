package queue

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

// HandlePublishNowTask publishes a single post on demand. Retry accounting
// lives on the post row, so the asynq task itself never retries.
func (q *Queue) HandlePublishNowTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishNowPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	return q.publisher.PublishNow(ctx, payload.PostID)
}

func (q *Queue) HandleSyncAccountTask(ctx context.Context, task *asynq.Task) error {
	var payload SyncAccountPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	_, err := q.syncer.SyncAccountNow(ctx, payload.AccountID)
	return err
}
