// Package scheduler defines the asynq task types and the worker that
// processes them.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskCacheRecompute = "renewal.cache.recompute"

const TaskNotificationReconcile = "notification.reconcile"

const TaskRenewalDigest = "notification.renewal_digest"

type CacheRecomputePayload struct {
	Trigger string `json:"trigger"`
}

func NewCacheRecomputeTask(payload CacheRecomputePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCacheRecompute, data), nil
}

func ParseCacheRecomputePayload(task *asynq.Task) (CacheRecomputePayload, error) {
	var payload CacheRecomputePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CacheRecomputePayload{}, err
	}
	return payload, nil
}

func NewNotificationReconcileTask() *asynq.Task {
	return asynq.NewTask(TaskNotificationReconcile, nil)
}

func NewRenewalDigestTask() *asynq.Task {
	return asynq.NewTask(TaskRenewalDigest, nil)
}
