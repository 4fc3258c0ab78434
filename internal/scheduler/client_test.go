package scheduler

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
)

type schedulerCfg struct {
	redisURL string
	queue    string
}

func (c schedulerCfg) GetRedisURL() string       { return c.redisURL }
func (c schedulerCfg) GetRedisTLSInsecure() bool { return false }
func (c schedulerCfg) GetAsynqQueueName() string { return c.queue }
func (c schedulerCfg) GetAsynqConcurrency() int  { return 1 }

func newTestClient(t *testing.T) (*Client, *asynq.Inspector) {
	t.Helper()

	srv := miniredis.RunT(t)
	cfg := schedulerCfg{redisURL: "redis://" + srv.Addr(), queue: "engine"}

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: srv.Addr()})
	t.Cleanup(func() { _ = inspector.Close() })

	return client, inspector
}

func pendingTasks(t *testing.T, inspector *asynq.Inspector) []*asynq.TaskInfo {
	t.Helper()
	tasks, err := inspector.ListPendingTasks("engine")
	if err != nil {
		t.Fatalf("ListPendingTasks() error = %v", err)
	}
	return tasks
}

func TestRequestRecomputeEnqueues(t *testing.T) {
	client, inspector := newTestClient(t)

	if err := client.RequestRecompute(context.Background()); err != nil {
		t.Fatalf("RequestRecompute() error = %v", err)
	}

	tasks := pendingTasks(t, inspector)
	if len(tasks) != 1 {
		t.Fatalf("pending tasks = %d, want 1", len(tasks))
	}
	if tasks[0].Type != TaskCacheRecompute {
		t.Errorf("task type = %q, want %q", tasks[0].Type, TaskCacheRecompute)
	}

	payload, err := ParseCacheRecomputePayload(asynq.NewTask(tasks[0].Type, tasks[0].Payload))
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if payload.Trigger != "manual" {
		t.Errorf("trigger = %q, want manual", payload.Trigger)
	}
}

func TestRequestRecomputeCoalescesDuplicates(t *testing.T) {
	client, inspector := newTestClient(t)

	for i := 0; i < 5; i++ {
		if err := client.RequestRecompute(context.Background()); err != nil {
			t.Fatalf("RequestRecompute() #%d error = %v", i, err)
		}
	}

	if tasks := pendingTasks(t, inspector); len(tasks) != 1 {
		t.Errorf("pending tasks = %d, want 1 after duplicate requests", len(tasks))
	}
}

func TestEnqueueNotificationReconcile(t *testing.T) {
	client, inspector := newTestClient(t)

	for i := 0; i < 3; i++ {
		if err := client.EnqueueNotificationReconcile(context.Background()); err != nil {
			t.Fatalf("EnqueueNotificationReconcile() #%d error = %v", i, err)
		}
	}

	tasks := pendingTasks(t, inspector)
	if len(tasks) != 1 || tasks[0].Type != TaskNotificationReconcile {
		t.Errorf("tasks = %+v, want one coalesced reconcile task", tasks)
	}
}

func TestEnqueueRenewalDigest(t *testing.T) {
	client, inspector := newTestClient(t)

	if err := client.EnqueueRenewalDigest(context.Background()); err != nil {
		t.Fatalf("EnqueueRenewalDigest() error = %v", err)
	}

	tasks := pendingTasks(t, inspector)
	if len(tasks) != 1 || tasks[0].Type != TaskRenewalDigest {
		t.Errorf("tasks = %+v, want one renewal digest task", tasks)
	}
}
