package kiosk

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type AuditLogEntry struct {
	Timestamp  time.Time     `json:"timestamp"`
	Handler    string        `json:"handler"`
	Method     string        `json:"method"`
	Route      string        `json:"route"`
	StatusCode int           `json:"status_code"`
	Duration   time.Duration `json:"duration"`
	RemoteAddr string        `json:"remote_addr,omitempty"`
	OrderID    string        `json:"order_id,omitempty"`
	OldStatus  string        `json:"old_status,omitempty"`
	NewStatus  string        `json:"new_status,omitempty"`
	Error      string        `json:"error,omitempty"`
}

func (e AuditLogEntry) fields() []zap.Field {
	fields := []zap.Field{
		zap.Time("timestamp", e.Timestamp),
		zap.String("handler", e.Handler),
		zap.String("method", e.Method),
		zap.String("route", e.Route),
		zap.Int("status_code", e.StatusCode),
		zap.Duration("duration", e.Duration),
	}
	if e.RemoteAddr != "" {
		fields = append(fields, zap.String("remote_addr", e.RemoteAddr))
	}
	if e.OrderID != "" {
		fields = append(fields, zap.String("order_id", e.OrderID))
	}
	if e.OldStatus != "" || e.NewStatus != "" {
		fields = append(fields, zap.String("old_status", e.OldStatus), zap.String("new_status", e.NewStatus))
	}
	if e.Error != "" {
		fields = append(fields, zap.String("error", e.Error))
	}
	return fields
}

// AuditManager collects entries into batches of batchSize, or whatever has
// accumulated after timeout, and hands them to a pool of workers that write
// them to the logger.
type AuditManager struct {
	workerCount int
	batchSize   int
	timeout     time.Duration
	logger      *zap.Logger

	inputChan  chan AuditLogEntry
	batchChan  chan []AuditLogEntry
	shutdownCh chan struct{}
	once       sync.Once

	wg           sync.WaitGroup
	pendingMu    sync.Mutex
	pendingCount int
}

func NewAuditManager(workerCount, batchSize int, timeout time.Duration, logger *zap.Logger) *AuditManager {
	return &AuditManager{
		workerCount: workerCount,
		batchSize:   batchSize,
		timeout:     timeout,
		logger:      logger.Named("audit"),
		inputChan:   make(chan AuditLogEntry, workerCount*batchSize*2),
		batchChan:   make(chan []AuditLogEntry, workerCount*2),
		shutdownCh:  make(chan struct{}),
	}
}

func (m *AuditManager) Start(ctx context.Context) {
	m.wg.Add(1)
	go m.runAggregator(ctx)

	for i := 0; i < m.workerCount; i++ {
		m.wg.Add(1)
		go m.runWorker(i)
	}

	go func() {
		select {
		case <-ctx.Done():
			m.Shutdown(context.Background())
		case <-m.shutdownCh:
		}
	}()
}

// Shutdown flushes queued entries and waits for the workers, or for ctx.
func (m *AuditManager) Shutdown(ctx context.Context) {
	m.once.Do(func() {
		close(m.shutdownCh)

		done := make(chan struct{})
		go func() {
			m.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			m.logger.Debug("audit manager stopped")
		case <-ctx.Done():
			m.logger.Warn("audit manager shutdown interrupted", zap.Int("pending", m.Pending()))
		}
	})
}

func (m *AuditManager) LogEntry(entry AuditLogEntry) {
	m.updatePendingCount(1)

	select {
	case <-m.shutdownCh:
		m.writeDirect(entry)
		return
	default:
	}

	select {
	case m.inputChan <- entry:
	case <-m.shutdownCh:
		m.writeDirect(entry)
	}
}

// Pending is the number of entries accepted but not yet written.
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
		m.writeBatch(-1, batchCopy)
	}
}

func (m *AuditManager) runWorker(id int) {
	defer m.wg.Done()
	for batch := range m.batchChan {
		m.writeBatch(id, batch)
	}
}

func (m *AuditManager) writeDirect(entry AuditLogEntry) {
	m.logger.Info("request", entry.fields()...)
	m.updatePendingCount(-1)
}

func (m *AuditManager) writeBatch(workerID int, batch []AuditLogEntry) {
	l := m.logger
	if workerID >= 0 {
		l = l.With(zap.Int("worker", workerID))
	}
	for _, entry := range batch {
		l.Info("request", entry.fields()...)
	}
	m.updatePendingCount(-len(batch))
}

func (m *AuditManager) updatePendingCount(delta int) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	m.pendingCount += delta
}
