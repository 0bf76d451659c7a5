package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	mock_kafka "gitlab.ozon.dev/pupkingeorgij/deliveries/internal/kafka/mocks"
	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/orders"
	mock_server "gitlab.ozon.dev/pupkingeorgij/deliveries/internal/server/mocks"
)

const auditTopic = "audit_logs"

type sentMessages struct {
	mu     sync.Mutex
	keys   []string
	values [][]byte
}

func (s *sentMessages) record(_ context.Context, topic string, key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, string(key))
	s.values = append(s.values, value)
	return nil
}

func shutdown(t *testing.T, m *AuditManager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	m.Shutdown(ctx)
}

func TestAuditManager_PublishesEveryEntry(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	producer := mock_kafka.NewMockProducer(ctrl)
	sent := &sentMessages{}
	producer.EXPECT().
		SendMessage(gomock.Any(), auditTopic, gomock.Any(), gomock.Any()).
		DoAndReturn(sent.record).
		Times(3)

	m := NewAuditManager(1, 2, 20*time.Millisecond, producer, auditTopic, zap.NewNop())
	m.Start(context.Background())

	ctx := context.Background()
	m.LogEntry(ctx, AuditLogEntry{Handler: "handleCreateOrder", OrderID: "1"})
	m.LogEntry(ctx, AuditLogEntry{Handler: "handleUpdateOrder", OrderID: "2"})
	m.LogEntry(ctx, AuditLogEntry{Handler: "handleListOrders"})

	shutdown(t, m)

	require.Len(t, sent.keys, 3)
	assert.Equal(t, []string{"1", "2"}, sent.keys[:2])
	_, err := uuid.Parse(sent.keys[2])
	assert.NoError(t, err, "entries without an order get a random key")
	assert.Equal(t, 0, m.Pending())
}

func TestAuditManager_FlushesOnTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	producer := mock_kafka.NewMockProducer(ctrl)
	delivered := make(chan struct{})
	producer.EXPECT().
		SendMessage(gomock.Any(), auditTopic, []byte("7"), gomock.Any()).
		DoAndReturn(func(context.Context, string, []byte, []byte) error {
			close(delivered)
			return nil
		})

	m := NewAuditManager(1, 10, 10*time.Millisecond, producer, auditTopic, zap.NewNop())
	m.Start(context.Background())
	defer shutdown(t, m)

	m.LogEntry(context.Background(), AuditLogEntry{OrderID: "7"})

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("partial batch was not flushed")
	}
}

func TestAuditManager_SendFailureIsCounted(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	producer := mock_kafka.NewMockProducer(ctrl)
	producer.EXPECT().
		SendMessage(gomock.Any(), auditTopic, gomock.Any(), gomock.Any()).
		Return(errors.New("broker not available"))

	before := testutil.ToFloat64(metrics.AuditEntriesDroppedTotal)

	m := NewAuditManager(1, 1, time.Second, producer, auditTopic, zap.NewNop())
	m.Start(context.Background())
	m.LogEntry(context.Background(), AuditLogEntry{OrderID: "1"})
	shutdown(t, m)

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.AuditEntriesDroppedTotal))
}

func TestAuditManager_EntryAfterShutdownIsDropped(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	producer := mock_kafka.NewMockProducer(ctrl)
	producer.EXPECT().SendMessage(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	m := NewAuditManager(1, 5, time.Second, producer, auditTopic, zap.NewNop())
	m.Start(context.Background())
	shutdown(t, m)

	before := testutil.ToFloat64(metrics.AuditEntriesDroppedTotal)
	for i := 0; i < 3; i++ {
		m.LogEntry(context.Background(), AuditLogEntry{OrderID: "late"})
	}

	assert.Equal(t, 0, m.Pending())
	assert.Equal(t, 0, len(m.inputChan))
	assert.Equal(t, before+3, testutil.ToFloat64(metrics.AuditEntriesDroppedTotal))
}

func TestAuditLogMiddleware_Toggle(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	producer := mock_kafka.NewMockProducer(ctrl)
	sent := &sentMessages{}
	producer.EXPECT().
		SendMessage(gomock.Any(), auditTopic, gomock.Any(), gomock.Any()).
		DoAndReturn(sent.record).
		Times(1)

	mockStore := mock_server.NewMockStore(ctrl)
	m := NewAuditManager(1, 5, 10*time.Millisecond, producer, auditTopic, zap.NewNop())
	server := New(mockStore, orders.NewCatalog(nil), zap.NewNop(), WithAuditManager(m))
	m.Start(context.Background())

	pending := testOrder("order1")
	completed := pending
	completed.Status = orders.StatusCompleted
	mockStore.EXPECT().Get(gomock.Any(), "order1").Return(pending, nil)
	mockStore.EXPECT().ToggleStatus(gomock.Any(), "order1").Return(completed, nil)

	handler := server.Handler()

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/orders/order1/toggle", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	// scrapes are not audited
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	shutdown(t, m)

	require.Len(t, sent.values, 1)
	assert.Equal(t, "order1", sent.keys[0])

	var entry AuditLogEntry
	require.NoError(t, json.Unmarshal(sent.values[0], &entry))
	assert.Equal(t, toggleRoute, entry.Handler)
	assert.Equal(t, http.MethodPost, entry.Method)
	assert.Equal(t, "/orders/order1/toggle", entry.Path)
	assert.Equal(t, http.StatusOK, entry.StatusCode)
	assert.Equal(t, "pending", entry.OldStatus)
	assert.Equal(t, "completed", entry.NewStatus)
}
