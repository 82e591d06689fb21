package queue

import (
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

func EnqueuePublishNow(asynqClient *asynq.Client, payload PublishNowPayload) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePublishNow, taskPayload)

	_, err = asynqClient.Enqueue(task, asynq.MaxRetry(0))
	if err != nil {
		return err
	}

	slog.Info("publish task enqueued", slog.Int64("post_id", payload.PostID))
	return nil
}

func EnqueueSyncAccount(asynqClient *asynq.Client, payload SyncAccountPayload) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeSyncAccount, taskPayload)

	_, err = asynqClient.Enqueue(task, asynq.MaxRetry(2))
	if err != nil {
		return err
	}

	slog.Info("sync task enqueued", slog.Int64("account_id", payload.AccountID))
	return nil
}
