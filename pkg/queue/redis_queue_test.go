package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisJobQueueEnqueueAndGet(t *testing.T) {
	q, ctx := newTestQueue(t)

	status, err := q.Enqueue(ctx, Job{BookID: 7, StorageKey: "chapters/abc.pdf", ChapterName: "Chapter One", Filename: "ch1.pdf"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if status.Status != StatusQueued || status.ID == "" {
		t.Fatalf("unexpected status: %+v", status)
	}

	got, ok, err := q.GetJob(ctx, status.ID)
	if err != nil || !ok {
		t.Fatalf("get job: ok=%v err=%v", ok, err)
	}
	if got.BookID != 7 || got.StorageKey != "chapters/abc.pdf" || got.ChapterName != "Chapter One" {
		t.Fatalf("unexpected job: %+v", got)
	}
}

func TestRedisJobQueueEnqueueRequiresBookAndKey(t *testing.T) {
	q, ctx := newTestQueue(t)

	if _, err := q.Enqueue(ctx, Job{StorageKey: "chapters/x.pdf"}); err == nil {
		t.Fatalf("expected error without book id")
	}
	if _, err := q.Enqueue(ctx, Job{BookID: 7}); err == nil {
		t.Fatalf("expected error without storage key")
	}
}

func TestRedisJobQueueMarkDoneRecordsChargedCount(t *testing.T) {
	q, ctx := newTestQueue(t)

	status, err := q.Enqueue(ctx, Job{BookID: 7, StorageKey: "chapters/abc.pdf"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.markDone(ctx, status.ID, Result{ChapterID: 42, ChargedCount: 3}); err != nil {
		t.Fatalf("mark done: %v", err)
	}

	got, ok, err := q.GetJob(ctx, status.ID)
	if err != nil || !ok {
		t.Fatalf("get job: ok=%v err=%v", ok, err)
	}
	if got.Status != StatusDone {
		t.Fatalf("expected done, got %q", got.Status)
	}
	if got.ChapterID != 42 || got.ChargedCount != 3 {
		t.Fatalf("unexpected result fields: %+v", got)
	}
}

func TestRedisJobQueueRequeueAndAckSuccess(t *testing.T) {
	q, ctx, msgID, jobID := newPendingQueueMessage(t)

	if err := q.requeueAndAck(ctx, msgID, jobID); err != nil {
		t.Fatalf("requeue and ack: %v", err)
	}

	pending, err := q.client.XPending(ctx, q.stream, q.group).Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 0 {
		t.Fatalf("expected no pending messages, got %d", pending.Count)
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: "consumer-2",
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    0,
	}).Result()
	if err != nil {
		t.Fatalf("read requeued message: %v", err)
	}
	if len(streams) != 1 || len(streams[0].Messages) != 1 {
		t.Fatalf("expected one requeued message, got %+v", streams)
	}
	got := streams[0].Messages[0]
	if got.Values["job_id"] != jobID {
		t.Fatalf("unexpected requeued payload: %+v", got.Values)
	}
}

func TestRedisJobQueueRequeueAndAckFailureKeepsPendingMessage(t *testing.T) {
	q, ctx, msgID, jobID := newPendingQueueMessage(t)

	canceledCtx, cancel := context.WithCancel(ctx)
	cancel()
	if err := q.requeueAndAck(canceledCtx, msgID, jobID); err == nil {
		t.Fatalf("expected requeueAndAck to fail on canceled context")
	}

	pending, err := q.client.XPending(ctx, q.stream, q.group).Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 1 {
		t.Fatalf("expected original message to remain pending, got %d", pending.Count)
	}

	streamLen, err := q.client.XLen(ctx, q.stream).Result()
	if err != nil {
		t.Fatalf("xlen: %v", err)
	}
	if streamLen != 1 {
		t.Fatalf("expected no new message in stream on failure, got len=%d", streamLen)
	}
}

func newTestQueue(t *testing.T) (*RedisJobQueue, context.Context) {
	t.Helper()

	redisSrv := miniredis.RunT(t)
	q, err := NewRedisJobQueue(RedisQueueConfig{
		Addr:       redisSrv.Addr(),
		Stream:     "test:ingest",
		Group:      "test-group",
		Consumer:   "consumer-1",
		RetryDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	ctx := context.Background()
	q.ensureGroup(ctx)
	return q, ctx
}

func newPendingQueueMessage(t *testing.T) (*RedisJobQueue, context.Context, string, string) {
	t.Helper()

	q, ctx := newTestQueue(t)

	job, err := q.Enqueue(ctx, Job{BookID: 1, StorageKey: "chapters/pending.pdf"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: "consumer-1",
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    0,
	}).Result()
	if err != nil {
		t.Fatalf("readgroup: %v", err)
	}
	if len(streams) != 1 || len(streams[0].Messages) != 1 {
		t.Fatalf("expected one pending message, got %+v", streams)
	}

	msg := streams[0].Messages[0]
	return q, ctx, msg.ID, job.ID
}
