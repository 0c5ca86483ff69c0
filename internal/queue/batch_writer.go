package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/kadkongta/crowd-insight/internal/database"
	"github.com/kadkongta/crowd-insight/internal/protocol"
)

// MessageSource supplies sample messages and accepts offset commits
type MessageSource interface {
	Consume(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
}

// SampleStore persists decoded sample batches
type SampleStore interface {
	InsertSamples(samples []*database.OccupancySample) error
}

// BatchWriter consumes sample messages from Kafka and batch-writes them to
// the database. Each flush is one transaction so writes stay atomic and the
// live ingest path is never blocked on storage latency.
type BatchWriter struct {
	consumer      MessageSource
	db            SampleStore
	batchSize     int
	flushInterval time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
}

// NewBatchWriter creates a new batch writer
func NewBatchWriter(consumer MessageSource, db SampleStore, batchSize int, flushInterval time.Duration) *BatchWriter {
	return &BatchWriter{
		consumer:      consumer,
		db:            db,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		stopCh:        make(chan struct{}),
	}
}

// Start begins consuming and writing to the database
func (bw *BatchWriter) Start(ctx context.Context) error {
	bw.wg.Add(1)
	go bw.run(ctx)
	return nil
}

// Stop stops the batch writer gracefully
func (bw *BatchWriter) Stop() {
	close(bw.stopCh)
	bw.wg.Wait()
}

func (bw *BatchWriter) run(ctx context.Context) {
	defer bw.wg.Done()

	var batch []kafka.Message
	ticker := time.NewTicker(bw.flushInterval)
	defer ticker.Stop()

	// The fetch loop gets its own cancelable context so Stop can unblock a
	// pending Consume; the final flush still commits on the parent context.
	fetchCtx, cancelFetch := context.WithCancel(ctx)
	defer cancelFetch()

	msgChan := make(chan kafka.Message, 10)
	bw.wg.Add(1)
	go func() {
		defer bw.wg.Done()
		for {
			msg, err := bw.consumer.Consume(fetchCtx)
			if err != nil {
				if fetchCtx.Err() != nil {
					return
				}
				fmt.Printf("Consumer error: %v\n", err)
				continue
			}
			select {
			case msgChan <- msg:
			case <-fetchCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-bw.stopCh:
			// Flush remaining batch before stopping
			cancelFetch()
			bw.flush(ctx, batch)
			return

		case <-ticker.C:
			bw.flush(ctx, batch)
			batch = nil

		case msg := <-msgChan:
			batch = append(batch, msg)
			if len(batch) >= bw.batchSize {
				bw.flush(ctx, batch)
				batch = nil
			}
		}
	}
}

func (bw *BatchWriter) flush(ctx context.Context, batch []kafka.Message) {
	if len(batch) == 0 {
		return
	}

	samples := make([]*database.OccupancySample, 0, len(batch))
	for _, msg := range batch {
		sample, err := decodeSample(msg)
		if err != nil {
			// Malformed rows are dropped, not retried; log and move on
			fmt.Printf("Skipping bad message (partition=%d, offset=%d): %v\n",
				msg.Partition, msg.Offset, err)
			continue
		}
		samples = append(samples, sample)
	}

	if err := bw.db.InsertSamples(samples); err != nil {
		// Leave offsets uncommitted so the batch is redelivered
		fmt.Printf("Failed to write batch of %d samples: %v\n", len(samples), err)
		return
	}

	for _, msg := range batch {
		if err := bw.consumer.Commit(ctx, msg); err != nil {
			fmt.Printf("Failed to commit offset: %v\n", err)
		}
	}

	fmt.Printf("Flushed batch of %d samples to database\n", len(samples))
}

func decodeSample(msg kafka.Message) (*database.OccupancySample, error) {
	sampleMsg, err := protocol.DecodeSampleMessage(msg.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	if err := sampleMsg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sample: %w", err)
	}

	var zone *string
	if sampleMsg.ZoneCode != "" {
		zone = &sampleMsg.ZoneCode
	}

	return &database.OccupancySample{
		ZoneCode:   zone,
		Count:      sampleMsg.Count,
		RecordedAt: sampleMsg.RecordedAt,
		Source:     sampleMsg.Source,
		ReceivedAt: sampleMsg.ReceivedAt,
	}, nil
}
