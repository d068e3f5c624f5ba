package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	mylog "github.com/mohammed-shakir/geodb-places/internal/logger"
	"github.com/mohammed-shakir/geodb-places/internal/places"
)

func TestPublisher_SendsGroupRegistered(t *testing.T) {
	prod := mocks.NewSyncProducer(t, nil)
	var got GroupRegistered
	prod.ExpectSendMessageWithCheckerFunctionAndSucceed(func(b []byte) error {
		return json.Unmarshal(b, &got)
	})

	p := NewPublisherWithProducer(prod, "places-registered", nil)
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{1, 2}))
	g := &places.PlaceGroup{ID: "DB-x", Title: "X", Features: fc}

	ctx := mylog.WithCycleID(context.Background(), "cycle-1")
	if err := p.GroupAdded(ctx, g, []string{"ds"}); err != nil {
		t.Fatalf("GroupAdded: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got.GroupID != "DB-x" || got.Features != 1 || got.CycleID != "cycle-1" || got.Version != Version {
		t.Fatalf("event = %+v", got)
	}
	if len(got.DatasetRefs) != 1 || got.DatasetRefs[0] != "ds" {
		t.Fatalf("dataset refs = %v", got.DatasetRefs)
	}
}

func TestPublisher_SendFailure(t *testing.T) {
	prod := mocks.NewSyncProducer(t, nil)
	prod.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	p := NewPublisherWithProducer(prod, "t", nil)
	err := p.GroupAdded(context.Background(), &places.PlaceGroup{ID: "DB-x"}, nil)
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("want ErrOutOfBrokers, got %v", err)
	}
	_ = p.Close()
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
	msgs chan *sarama.ConsumerMessage
}

func (c *claim) Topic() string                            { return "geodb-changes" }
func (c *claim) Partition() int32                         { return 0 }
func (c *claim) InitialOffset() int64                     { return 0 }
func (c *claim) HighWaterMarkOffset() int64               { return 0 }
func (c *claim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func changeBytes(db, coll string, seq uint64) []byte {
	b, _ := json.Marshal(CollectionChanged{
		Version: 1, Op: "update", Database: db, Collection: coll, Seq: seq, TS: time.Now().UTC(),
	})
	return b
}

func TestConsumer_TriggersForWatchedAndCommitsAll(t *testing.T) {
	var reasons []string
	c := NewConsumer(ConsumerConfig{Topic: "geodb-changes"}, nil,
		func(name string) bool { return name == "mydb_places" },
		func(reason string) { reasons = append(reasons, reason) })

	ch := make(chan *sarama.ConsumerMessage, 5)
	ch <- &sarama.ConsumerMessage{Offset: 1, Value: changeBytes("mydb", "places", 1)}
	ch <- &sarama.ConsumerMessage{Offset: 2, Value: changeBytes("mydb", "other", 1)}
	ch <- &sarama.ConsumerMessage{Offset: 3, Value: []byte("{not json")}
	ch <- &sarama.ConsumerMessage{Offset: 4, Value: changeBytes("mydb", "places", 1)}
	ch <- &sarama.ConsumerMessage{Offset: 5, Value: changeBytes("mydb", "places", 2)}
	close(ch)

	s := &sess{ctx: t.Context()}
	h := &groupHandler{process: c.ProcessOne}
	if err := h.ConsumeClaim(s, &claim{msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if len(s.marked) != 5 {
		t.Fatalf("marked offsets = %v, want all 5", s.marked)
	}
	if len(reasons) != 2 {
		t.Fatalf("triggers = %v, want 2 (stale seq dropped)", reasons)
	}
	if reasons[0] != "collection mydb_places update" {
		t.Fatalf("reason = %q", reasons[0])
	}
}

func TestHandler_StopsOnProcessError(t *testing.T) {
	ch := make(chan *sarama.ConsumerMessage, 2)
	ch <- &sarama.ConsumerMessage{Offset: 7}
	ch <- &sarama.ConsumerMessage{Offset: 8}
	close(ch)

	s := &sess{ctx: t.Context()}
	h := &groupHandler{process: func(context.Context, *sarama.ConsumerMessage) error {
		return errors.New("boom")
	}}
	if err := h.ConsumeClaim(s, &claim{msgs: ch}); err == nil {
		t.Fatalf("expected process error")
	}
	if len(s.marked) != 0 {
		t.Fatalf("failed message must not be marked: %v", s.marked)
	}
}

func TestCollectionChanged_Validate(t *testing.T) {
	ok := CollectionChanged{Version: 1, Op: "insert", Database: "d", Collection: "c", TS: time.Now()}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	for _, bad := range []CollectionChanged{
		{Version: 2, Op: "insert", Database: "d", Collection: "c", TS: time.Now()},
		{Version: 1, Op: "upsert", Database: "d", Collection: "c", TS: time.Now()},
		{Version: 1, Op: "insert", Collection: "c", TS: time.Now()},
		{Version: 1, Op: "insert", Database: "d", Collection: "c"},
	} {
		if bad.Validate() == nil {
			t.Fatalf("expected error for %+v", bad)
		}
	}
}
