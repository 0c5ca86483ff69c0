package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kadkongta/crowd-insight/internal/metrics"
	"github.com/kadkongta/crowd-insight/internal/protocol"
	"github.com/kadkongta/crowd-insight/internal/tracker"
)

// ErrNegativeCount is returned for counts rejected at the gateway boundary
var ErrNegativeCount = errors.New("count must be non-negative")

// Publisher hands a sample off to the store queue
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Evaluator receives every accepted reading
type Evaluator interface {
	Evaluate(ctx context.Context, reading tracker.Reading) error
}

// Gateway normalizes incoming occupancy samples, updates the current-state
// tracker, signals the alert engine, and queues the sample for persistence.
// The store handoff is fire-and-forget: a full queue or a failed publish is
// counted and logged but never fails the ingest.
type Gateway struct {
	tracker        *tracker.Tracker
	evaluator      Evaluator
	publisher      Publisher
	publishTimeout time.Duration
	queue          chan *protocol.SampleMessage
	stopCh         chan struct{}
	wg             sync.WaitGroup
	now            func() time.Time
}

// NewGateway creates an ingestion gateway
func NewGateway(trk *tracker.Tracker, evaluator Evaluator, publisher Publisher) *Gateway {
	return &Gateway{
		tracker:        trk,
		evaluator:      evaluator,
		publisher:      publisher,
		publishTimeout: 10 * time.Second,
		queue:          make(chan *protocol.SampleMessage, 256),
		stopCh:         make(chan struct{}),
		now:            time.Now,
	}
}

// Start launches the background publisher
func (g *Gateway) Start() {
	g.wg.Add(1)
	go g.publishLoop()
}

// Stop drains the publish queue and stops the gateway
func (g *Gateway) Stop() {
	close(g.stopCh)
	g.wg.Wait()
}

// Ingest accepts a pushed sample. A zero recordedAt means receipt time; an
// empty zone means the sample is space-wide.
func (g *Gateway) Ingest(ctx context.Context, count int, recordedAt time.Time, zone string) (tracker.Reading, error) {
	return g.ingest(ctx, count, recordedAt, zone, tracker.SourceLive)
}

func (g *Gateway) ingest(ctx context.Context, count int, recordedAt time.Time, zone string, source tracker.Source) (tracker.Reading, error) {
	if count < 0 {
		metrics.SamplesRejected.Inc()
		return tracker.Reading{}, ErrNegativeCount
	}

	receivedAt := g.now()
	if recordedAt.IsZero() {
		recordedAt = receivedAt
	}

	g.tracker.Update(count, recordedAt, source)
	metrics.SamplesIngested.WithLabelValues(string(source)).Inc()
	metrics.CurrentOccupancy.Set(float64(count))

	reading, _ := g.tracker.Current()

	if err := g.evaluator.Evaluate(ctx, reading); err != nil {
		// Alerting trouble must not reject the sample
		fmt.Printf("[Ingest] Alert evaluation failed: %v\n", err)
	}

	g.enqueue(&protocol.SampleMessage{
		SampleID:   uuid.NewString(),
		ZoneCode:   zone,
		Count:      count,
		RecordedAt: recordedAt,
		Source:     string(source),
		ReceivedAt: receivedAt,
	})

	return reading, nil
}

func (g *Gateway) enqueue(msg *protocol.SampleMessage) {
	select {
	case g.queue <- msg:
	default:
		// Never block the ingest path on a slow store
		metrics.StoreWriteFailures.Inc()
		fmt.Printf("[Ingest] Publish queue full, dropping sample %s\n", msg.SampleID)
	}
}

func (g *Gateway) publishLoop() {
	defer g.wg.Done()

	for {
		select {
		case msg := <-g.queue:
			g.publish(msg)
		case <-g.stopCh:
			// Drain whatever is already queued
			for {
				select {
				case msg := <-g.queue:
					g.publish(msg)
				default:
					return
				}
			}
		}
	}
}

func (g *Gateway) publish(msg *protocol.SampleMessage) {
	data, err := protocol.EncodeSampleMessage(msg)
	if err != nil {
		metrics.StoreWriteFailures.Inc()
		fmt.Printf("[Ingest] Failed to encode sample: %v\n", err)
		return
	}

	key := msg.ZoneCode
	if key == "" {
		key = "venue"
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.publishTimeout)
	defer cancel()

	if err := g.publisher.Publish(ctx, key, data); err != nil {
		metrics.StoreWriteFailures.Inc()
		fmt.Printf("[Ingest] Failed to publish sample %s: %v\n", msg.SampleID, err)
	}
}
