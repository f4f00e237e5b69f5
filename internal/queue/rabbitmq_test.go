package queue

import (
	"testing"
	"time"
)

func newUnconnectedQueue(delayed bool) *RabbitMQQueue {
	return &RabbitMQQueue{
		queueName:           DefaultQueueName,
		dlqName:             DefaultDLQName,
		exchangeName:        DefaultExchangeName,
		delayedExchangeName: DefaultDelayedExchangeName,
		delayed:             delayed,
	}
}

func TestRabbitMQQueue_PublishingExchange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		delayed      bool
		delay        time.Duration
		wantExchange string
		wantHeader   bool
	}{
		{name: "immediate job", delayed: true, wantExchange: DefaultExchangeName},
		{name: "delayed job with plugin", delayed: true, delay: time.Minute, wantExchange: DefaultDelayedExchangeName, wantHeader: true},
		{name: "delayed job without plugin", delayed: false, delay: time.Minute, wantExchange: DefaultExchangeName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			q := newUnconnectedQueue(tt.delayed)
			job := NewSweepJob("u", []string{"v"}, tt.delay)

			publishing, exchange, err := q.publishing(job)
			if err != nil {
				t.Fatalf("publishing failed: %v", err)
			}
			if exchange != tt.wantExchange {
				t.Errorf("Expected exchange %s, got %s", tt.wantExchange, exchange)
			}
			_, hasDelay := publishing.Headers["x-delay"]
			if hasDelay != tt.wantHeader {
				t.Errorf("Expected x-delay header %v, got headers %v", tt.wantHeader, publishing.Headers)
			}
			if publishing.MessageId != job.ID.String() || publishing.Type != string(JobTypeOrphanSweep) {
				t.Errorf("Unexpected publishing metadata %+v", publishing)
			}
		})
	}
}

func TestRabbitMQQueue_PublishingExpiration(t *testing.T) {
	t.Parallel()

	q := newUnconnectedQueue(false)
	job := NewJob(JobTypeOrphanGC, "", nil)
	notAfter := time.Now().Add(time.Hour)
	job.NotAfter = &notAfter

	publishing, _, err := q.publishing(job)
	if err != nil {
		t.Fatalf("publishing failed: %v", err)
	}
	if publishing.Expiration == "" {
		t.Error("Expected expiration for a job with NotAfter")
	}
}
