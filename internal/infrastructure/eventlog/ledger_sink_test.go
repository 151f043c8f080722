package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xiebiao/storefront/internal/application/ledger"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestLedgerSink_Write(t *testing.T) {
	w := &fakeWriter{}
	sink := newLedgerSink(w, "ledger", zap.NewNop())
	ts := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	err := sink.Write(context.Background(), []ledger.Record{
		{ID: 1, StockItemID: "stock-1", Change: -2, Reason: "HOLD", HoldID: "hold-1", Timestamp: ts},
		{ID: 2, StockItemID: "stock-1", Change: -2, Reason: "COMMIT", HoldID: "hold-1", OrderID: "order-1", Timestamp: ts},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)

	msg := w.msgs[1]
	assert.Equal(t, "stock-1", string(msg.Key))
	assert.Contains(t, msg.Headers, kafka.Header{Key: "ledger-id", Value: []byte("2")})

	var got ledger.Record
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "COMMIT", got.Reason)
	assert.Equal(t, "order-1", got.OrderID)
	assert.True(t, ts.Equal(got.Timestamp))

	require.NoError(t, sink.Close())
	assert.True(t, w.closed)
}

func TestLedgerSink_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	sink := newLedgerSink(w, "ledger", zap.NewNop())

	err := sink.Write(context.Background(), []ledger.Record{{ID: 1, StockItemID: "stock-1"}})
	assert.Error(t, err)
}
