package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wiktoriasw/Invitations/internal/notify"
	"github.com/wiktoriasw/Invitations/pkg/metrics"
	"github.com/wiktoriasw/Invitations/pkg/queue"
)

type fakeSender struct {
	sent chan notify.Message
	err  error
}

func newFakeSender(err error) *fakeSender {
	return &fakeSender{sent: make(chan notify.Message, 8), err: err}
}

func (s *fakeSender) Send(_ context.Context, msg notify.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent <- msg
	return nil
}

func newTestQueue(t *testing.T) (*queue.Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return queue.NewQueue(rdb, nil), mr
}

func emailJob(t *testing.T, to string) *queue.Job {
	t.Helper()
	body, err := json.Marshal(queue.EmailPayload{EmailType: queue.EmailPasswordReset, RecipientEmail: to, Subject: "Reset"})
	require.NoError(t, err)
	return &queue.Job{ID: "job-1", Type: queue.JobTypeEmail, Payload: body}
}

func TestProcess(t *testing.T) {
	sender := newFakeSender(nil)
	p := NewEmailProcessor(nil, sender, nil)

	require.NoError(t, p.Process(context.Background(), emailJob(t, "ada@example.com")))
	msg := <-sender.sent
	assert.Equal(t, "ada@example.com", msg.To)
	assert.Equal(t, "Reset", msg.Subject)

	err := p.Process(context.Background(), &queue.Job{Type: "other"})
	assert.ErrorIs(t, err, ErrPermanent)

	err = p.Process(context.Background(), &queue.Job{Type: queue.JobTypeEmail, Payload: json.RawMessage(`"x"`)})
	assert.ErrorIs(t, err, ErrPermanent)

	err = p.Process(context.Background(), emailJob(t, ""))
	assert.ErrorIs(t, err, ErrPermanent)
}

func TestHandle_RetriesThenDeadLetters(t *testing.T) {
	q, _ := newTestQueue(t)
	p := NewEmailProcessor(q, newFakeSender(errors.New("smtp down")), nil)
	p.backoff = time.Millisecond
	ctx := context.Background()
	before := testutil.ToFloat64(metrics.EmailJobsTotal.WithLabelValues("dead_lettered"))

	job := emailJob(t, "ada@example.com")
	for i := 0; i < queue.MaxRetries; i++ {
		p.Handle(ctx, job)
	}

	assert.Equal(t, queue.MaxRetries, job.Attempt)
	n, err := q.DeadLetters(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.EmailJobsTotal.WithLabelValues("dead_lettered")))
}

func TestHandle_PermanentFailureIsNotRetried(t *testing.T) {
	q, mr := newTestQueue(t)
	p := NewEmailProcessor(q, newFakeSender(nil), nil)

	p.Handle(context.Background(), &queue.Job{ID: "bad", Type: "other"})

	assert.False(t, mr.Exists(queue.QueueEmails))
	assert.False(t, mr.Exists(queue.QueueDLQ))
}

func TestRun_DeliversQueuedEmail(t *testing.T) {
	q, _ := newTestQueue(t)
	sender := newFakeSender(nil)
	p := NewEmailProcessor(q, sender, nil)

	require.NoError(t, q.EnqueueEmail(context.Background(), queue.EmailPayload{RecipientEmail: "ada@example.com", Subject: "Reset"}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	select {
	case msg := <-sender.sent:
		assert.Equal(t, "ada@example.com", msg.To)
	case <-time.After(2 * time.Second):
		t.Fatal("email not sent")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(queue.PollTimeout + 2*time.Second):
		t.Fatal("worker did not stop")
	}
}
