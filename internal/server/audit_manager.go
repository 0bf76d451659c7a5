package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/kafka"
	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/metrics"
)

const sendTimeout = 5 * time.Second

// AuditManager collects audit entries into batches and hands them to a pool
// of workers that publish every entry to the audit topic. A batch is
// dispatched once it is full or when the flush timeout since its first entry
// expires.
type AuditManager struct {
	workerCount int
	batchSize   int
	timeout     time.Duration

	producer kafka.Producer
	topic    string
	logger   *zap.Logger

	inputChan  chan AuditLogEntry
	batchChan  chan []AuditLogEntry
	shutdownCh chan struct{}
	once       sync.Once

	wg           sync.WaitGroup
	pendingMu    sync.Mutex
	pendingCount int
}

func NewAuditManager(workerCount, batchSize int, timeout time.Duration, producer kafka.Producer, topic string, logger *zap.Logger) *AuditManager {
	return &AuditManager{
		workerCount: workerCount,
		batchSize:   batchSize,
		timeout:     timeout,
		producer:    producer,
		topic:       topic,
		logger:      logger.Named("audit"),
		inputChan:   make(chan AuditLogEntry, workerCount*batchSize*2),
		batchChan:   make(chan []AuditLogEntry, workerCount*2),
		shutdownCh:  make(chan struct{}),
	}
}

func (m *AuditManager) Start(ctx context.Context) {
	m.logger.Info("Starting AuditManager", zap.Int("workers", m.workerCount), zap.Int("batch_size", m.batchSize))
	m.wg.Add(1)
	go m.runAggregator(ctx)

	for i := 0; i < m.workerCount; i++ {
		m.wg.Add(1)
		go m.runWorker(i)
	}

	go m.monitorShutdown(ctx)
}

// Shutdown stops accepting batches, flushes what was already queued and
// waits for the workers until ctx expires.
func (m *AuditManager) Shutdown(ctx context.Context) {
	m.once.Do(func() {
		m.logger.Info("Initiating AuditManager shutdown")
		close(m.shutdownCh)

		done := make(chan struct{})
		go func() {
			m.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			m.dropQueued()
			m.logger.Info("AuditManager shutdown completed", zap.Int("pending", m.Pending()))
		case <-ctx.Done():
			m.logger.Warn("AuditManager shutdown interrupted", zap.Int("pending", m.Pending()))
		}
	})
}

// dropQueued accounts for entries that raced into the queue after the
// aggregator stopped reading it.
func (m *AuditManager) dropQueued() {
	for {
		select {
		case entry := <-m.inputChan:
			m.emergencyLog(entry)
		default:
			return
		}
	}
}

func (m *AuditManager) monitorShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
		m.logger.Info("Context cancellation detected")
		m.Shutdown(context.Background())
	case <-m.shutdownCh:
	}
}

func (m *AuditManager) LogEntry(ctx context.Context, entry AuditLogEntry) {
	m.updatePendingCount(1)

	// nobody drains the queue once shutdown began
	select {
	case <-m.shutdownCh:
		m.emergencyLog(entry)
		return
	default:
	}

	select {
	case m.inputChan <- entry:
	case <-ctx.Done():
		m.emergencyLog(entry)
	case <-m.shutdownCh:
		m.emergencyLog(entry)
	}
}

func (m *AuditManager) Pending() int {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	return m.pendingCount
}

func (m *AuditManager) runAggregator(ctx context.Context) {
	defer m.wg.Done()

	var (
		batch    []AuditLogEntry
		timer    *time.Timer
		timeoutC <-chan time.Time
	)

	defer func() {
		if timer != nil {
			timer.Stop()
		}
		// entries accepted before the stop signal still go out
	drain:
		for {
			select {
			case entry := <-m.inputChan:
				batch = append(batch, entry)
			default:
				break drain
			}
		}
		if len(batch) > 0 {
			m.dispatchBatch(batch)
		}
		close(m.batchChan)
	}()

	for {
		select {
		case entry := <-m.inputChan:
			batch = append(batch, entry)
			if len(batch) >= m.batchSize {
				m.dispatchBatch(batch)
				batch = nil
				timeoutC = nil
			} else if len(batch) == 1 {
				if timer != nil {
					timer.Stop()
				}
				timer = time.NewTimer(m.timeout)
				timeoutC = timer.C
			}

		case <-timeoutC:
			m.dispatchBatch(batch)
			batch = nil
			timeoutC = nil

		case <-ctx.Done():
			return

		case <-m.shutdownCh:
			return
		}
	}
}

func (m *AuditManager) dispatchBatch(batch []AuditLogEntry) {
	batchCopy := make([]AuditLogEntry, len(batch))
	copy(batchCopy, batch)

	select {
	case m.batchChan <- batchCopy:
	default:
		// workers are saturated
		m.publishBatch(-1, batchCopy)
	}
}

func (m *AuditManager) runWorker(id int) {
	defer m.wg.Done()

	for batch := range m.batchChan {
		m.publishBatch(id, batch)
	}
	m.logger.Debug("Audit worker exiting", zap.Int("worker", id))
}

func (m *AuditManager) publishBatch(workerID int, batch []AuditLogEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	for _, entry := range batch {
		if err := m.publish(ctx, entry); err != nil {
			metrics.AuditEntriesDroppedTotal.Inc()
			m.logger.Error("Failed to publish audit entry",
				zap.Int("worker", workerID),
				zap.String("handler", entry.Handler),
				zap.String("order_id", entry.OrderID),
				zap.Error(err),
			)
		}
	}
	m.updatePendingCount(-len(batch))
}

// publish keys the message by order id so entries for one order stay on one
// partition. Entries without an order get a random key.
func (m *AuditManager) publish(ctx context.Context, entry AuditLogEntry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	key := entry.OrderID
	if key == "" {
		key = uuid.NewString()
	}
	return m.producer.SendMessage(ctx, m.topic, []byte(key), value)
}

func (m *AuditManager) emergencyLog(entry AuditLogEntry) {
	metrics.AuditEntriesDroppedTotal.Inc()
	m.logger.Warn("Audit entry not queued",
		zap.Time("timestamp", entry.Timestamp),
		zap.String("handler", entry.Handler),
		zap.String("method", entry.Method),
		zap.String("path", entry.Path),
		zap.Int("status_code", entry.StatusCode),
		zap.String("order_id", entry.OrderID),
	)
	m.updatePendingCount(-1)
}

func (m *AuditManager) updatePendingCount(delta int) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	m.pendingCount += delta
}
