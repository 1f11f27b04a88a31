package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/busantrip/map-explorer/internal/invalidation"
	mylog "github.com/busantrip/map-explorer/internal/logger"
)

type fakeInvalidator struct {
	failFirst atomic.Bool
	mu        sync.Mutex
	seen      [][]string
}

func (f *fakeInvalidator) Invalidate(_ context.Context, regions ...string) error {
	f.mu.Lock()
	f.seen = append(f.seen, regions)
	f.mu.Unlock()
	if f.failFirst.Load() {
		f.failFirst.Store(false)
		return errors.New("boom")
	}
	return nil
}

type sess struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *sess) Claims() map[string][]int32 { return nil }
func (s *sess) MemberID() string           { return "" }
func (s *sess) GenerationID() int32        { return 0 }
func (s *sess) MarkMessage(m *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	s.marked = append(s.marked, m.Offset)
	s.mu.Unlock()
}
func (s *sess) ResetOffset(_ string, _ int32, _ int64, _ string) {}
func (s *sess) MarkOffset(_ string, _ int32, _ int64, _ string)  {}
func (s *sess) Context() context.Context                         { return s.ctx }
func (s *sess) Errors() <-chan error                             { return nil }
func (s *sess) Commit()                                          {}

type claim struct {
	part int32
	msgs chan *sarama.ConsumerMessage
}

func (c *claim) Topic() string                            { return "content-changes" }
func (c *claim) Partition() int32                         { return c.part }
func (c *claim) InitialOffset() int64                     { return 0 }
func (c *claim) HighWaterMarkOffset() int64               { return 0 }
func (c *claim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func eventBytes(regions ...string) []byte {
	ev := invalidation.Event{
		Version: 1, Op: "update", TS: time.Now().UTC(),
		ItemID: 7, Regions: regions,
	}
	b, _ := json.Marshal(ev)
	return b
}

func newConsumerForTest(inv Invalidator) *Consumer {
	cfg := NewConfig("x", "content-changes", "g")
	c := New(cfg, slog.Default(), inv)
	zl := mylog.Build(mylog.Config{Level: "error", Component: "kafka_consumer"}, nil)
	c.zlog = &zl
	return c
}

func TestConsumeClaim_OrderAndCommitAfterWork(t *testing.T) {
	inv := &fakeInvalidator{}
	c := newConsumerForTest(inv)

	g := &groupHandler{process: c.ProcessOne}
	s := &sess{ctx: t.Context()}
	ch := make(chan *sarama.ConsumerMessage, 2)
	ch <- &sarama.ConsumerMessage{Topic: "content-changes", Partition: 0, Offset: 10, Value: eventBytes("Haeundae-gu")}
	ch <- &sarama.ConsumerMessage{Topic: "content-changes", Partition: 0, Offset: 11, Value: eventBytes("Yeongdo-gu", "Jung-gu")}
	close(ch)

	if err := g.ConsumeClaim(s, &claim{part: 0, msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if len(s.marked) != 2 || s.marked[0] != 10 || s.marked[1] != 11 {
		t.Fatalf("marked offsets=%v want [10 11]", s.marked)
	}
	if len(inv.seen) != 2 || len(inv.seen[1]) != 2 {
		t.Fatalf("invalidations=%v", inv.seen)
	}
}

func TestProcessOne_RetryCommitsOnceAfterSuccess(t *testing.T) {
	inv := &fakeInvalidator{}
	inv.failFirst.Store(true)
	c := newConsumerForTest(inv)
	ctx := context.Background()

	msg := &sarama.ConsumerMessage{Topic: "content-changes", Partition: 0, Offset: 5, Value: eventBytes("Haeundae-gu")}
	if err := c.ProcessOne(ctx, msg); err == nil {
		t.Fatalf("expected error on first attempt")
	}

	s := &sess{ctx: ctx}
	g := &groupHandler{process: c.ProcessOne}
	ch := make(chan *sarama.ConsumerMessage, 1)
	ch <- msg
	close(ch)
	if err := g.ConsumeClaim(s, &claim{part: 0, msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim second attempt: %v", err)
	}
	if len(s.marked) != 1 || s.marked[0] != 5 {
		t.Fatalf("offset was not marked after success; marked=%v", s.marked)
	}
}

func TestProcessOne_DropsInvalidEvent(t *testing.T) {
	inv := &fakeInvalidator{}
	c := newConsumerForTest(inv)

	msg := &sarama.ConsumerMessage{Topic: "content-changes", Offset: 3,
		Value: []byte(`{"version":1,"op":"update","ts":"2026-08-14T09:15:00Z","regions":[]}`)}
	if err := c.ProcessOne(context.Background(), msg); err != nil {
		t.Fatalf("invalid events must be dropped, not retried: %v", err)
	}
	if len(inv.seen) != 0 {
		t.Fatalf("invalid event must not reach the invalidator: %v", inv.seen)
	}
}

func TestProcessOne_DecodeErrorIsRetried(t *testing.T) {
	inv := &fakeInvalidator{}
	c := newConsumerForTest(inv)

	msg := &sarama.ConsumerMessage{Topic: "content-changes", Offset: 4, Value: []byte("{not json")}
	if err := c.ProcessOne(context.Background(), msg); err == nil {
		t.Fatalf("expected decode error")
	}
}
