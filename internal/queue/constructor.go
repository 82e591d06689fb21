package queue

import (
	job "github.com/growlytics/socialsync/internal/jobs"
)

type Queue struct {
	publisher *job.ScheduledPostsWorker
	syncer    *job.MetricsSyncWorker
}

func NewQueue(publisher *job.ScheduledPostsWorker, syncer *job.MetricsSyncWorker) *Queue {
	return &Queue{
		publisher: publisher,
		syncer:    syncer,
	}
}

const (
	TaskTypePublishNow  = "social:publish_now"
	TaskTypeSyncAccount = "social:sync_account"
)

type PublishNowPayload struct {
	PostID int64 `json:"post_id"`
}

type SyncAccountPayload struct {
	AccountID int64 `json:"account_id"`
}
