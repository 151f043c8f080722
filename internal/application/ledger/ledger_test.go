package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xiebiao/storefront/internal/application/ledger"
	"github.com/xiebiao/storefront/internal/domain/inventory"
	"github.com/xiebiao/storefront/internal/testutil"
)

// seedActivity 入库10件,占用3件,释放1件,结果共4条流水
func seedActivity(t *testing.T, s *testutil.Shop) string {
	t.Helper()
	ctx := context.Background()
	digital := s.SeedDigital(t, true, 10, 1000)
	holdID, err := s.Holds.HoldStock(ctx, digital.StockItemID, 2)
	require.NoError(t, err)
	s.Clock.Advance(time.Second)
	_, err = s.Holds.HoldStock(ctx, digital.StockItemID, 1)
	require.NoError(t, err)
	s.Clock.Advance(time.Second)
	require.NoError(t, s.Holds.ReleaseStock(ctx, digital.StockItemID, 2, holdID, ""))
	return digital.StockItemID
}

func TestExporter(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewShop(t)
	stockItemID := seedActivity(t, s)
	seedActivity(t, s)

	// 分页大小小于流水数,覆盖游标翻页
	exporter := ledger.NewExporter(s.Ledger, s.Orders, 3)

	var pages int
	var all []ledger.Record
	err := exporter.Export(ctx, inventory.ExportFilter{}, func(page []ledger.Record) error {
		pages++
		all = append(all, page...)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, all, 8)
	assert.Equal(t, 3, pages)
	for i := 1; i < len(all); i++ {
		prev, cur := all[i-1], all[i]
		ordered := prev.Timestamp.Before(cur.Timestamp) || (prev.Timestamp.Equal(cur.Timestamp) && prev.ID < cur.ID)
		assert.True(t, ordered, "导出必须按(created_at, id)排序")
	}

	var filtered []ledger.Record
	err = exporter.Export(ctx, inventory.ExportFilter{StockItemID: stockItemID}, func(page []ledger.Record) error {
		filtered = append(filtered, page...)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, filtered, 4)
	assert.Equal(t, "RESTOCK", filtered[0].Reason)
	assert.Equal(t, 10, filtered[0].Change)
	assert.Equal(t, "RELEASE", filtered[3].Reason)
	assert.NotEmpty(t, filtered[3].HoldID)

	stop := errors.New("stop")
	err = exporter.Export(ctx, inventory.ExportFilter{}, func([]ledger.Record) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestExporter_AttributesHoldsToOrder(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewShop(t)
	digital := s.SeedDigital(t, true, 10, 1000)

	cancelled := s.DraftOrder(t, "customer-1", testutil.Line{Product: digital, Quantity: 2})
	require.NoError(t, s.FulfillmentService.CancelOrder(ctx, cancelled.ID, "abandoned"))
	s.Clock.Advance(time.Second)
	// 仍在购物车中的占用不属于任何订单
	s.FillCart(t, "customer-2", testutil.Line{Product: digital, Quantity: 1})

	exporter := ledger.NewExporter(s.Ledger, s.Orders, 2)

	var all []ledger.Record
	require.NoError(t, exporter.Export(ctx, inventory.ExportFilter{StockItemID: digital.StockItemID}, func(page []ledger.Record) error {
		all = append(all, page...)
		return nil
	}))
	owners := map[string]string{}
	for _, r := range all {
		owners[r.Reason+":"+r.HoldID] = r.OrderID
	}
	holdID := cancelled.Items[0].HoldID
	assert.Equal(t, cancelled.ID, owners["HOLD:"+holdID], "HOLD流水按占用ID补全订单")
	assert.Equal(t, cancelled.ID, owners["RELEASE:"+holdID])

	var byOrder []ledger.Record
	require.NoError(t, exporter.Export(ctx, inventory.ExportFilter{OrderID: cancelled.ID}, func(page []ledger.Record) error {
		byOrder = append(byOrder, page...)
		return nil
	}))
	require.Len(t, byOrder, 2)
	net := 0
	for _, r := range byOrder {
		assert.Equal(t, cancelled.ID, r.OrderID)
		net += r.Change
	}
	assert.Zero(t, net, "取消的订单流水净变化为零")
	assert.Equal(t, "HOLD", byOrder[0].Reason)
	assert.Equal(t, "RELEASE", byOrder[1].Reason)

	for _, r := range all {
		if r.Reason == "HOLD" && r.HoldID != holdID {
			assert.Empty(t, r.OrderID, "购物车占用没有订单")
		}
	}
}

func TestReconciler(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewShop(t)
	stockItemID := seedActivity(t, s)

	drift, err := ledger.NewReconciler(s.Stocks, s.Ledger).Reconcile(ctx, stockItemID)
	require.NoError(t, err)
	assert.True(t, drift.IsZero())
	assert.Equal(t, inventory.Counters{Quantity: 10, HoldQuantity: 1}, drift.Stored)
	assert.Equal(t, 4, drift.Entries)

	// 绕过流水直接改计数器会被发现
	require.NoError(t, s.Stocks.AddQuantity(ctx, stockItemID, 5))
	drift, err = ledger.NewReconciler(s.Stocks, s.Ledger).Reconcile(ctx, stockItemID)
	require.NoError(t, err)
	assert.False(t, drift.IsZero())
	assert.Equal(t, 5, drift.QuantityDrift)

	_, err = ledger.NewReconciler(s.Stocks, s.Ledger).Reconcile(ctx, "missing")
	assert.ErrorIs(t, err, inventory.ErrStockItemNotFound)
}

type fakeSink struct {
	batches [][]ledger.Record
	err     error
}

func (s *fakeSink) Name() string { return "fake" }

func (s *fakeSink) Write(_ context.Context, records []ledger.Record) error {
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, records)
	return nil
}

func TestRelay(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewShop(t)
	seedActivity(t, s)

	sink := &fakeSink{}
	relay := ledger.NewRelay(s.Ledger, s.Cursors, sink, s.Clock, ledger.RelayConfig{
		BatchSize: 3, SettleWindow: 10 * time.Second,
	}, zap.NewNop())

	// 结算窗口内的流水暂不转发
	n, err := relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	s.Clock.Advance(time.Minute)
	n, err = relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	var ids []uint64
	for _, batch := range sink.batches {
		for _, r := range batch {
			ids = append(ids, r.ID)
		}
	}
	require.Len(t, ids, 4)
	for i := 1; i < len(ids); i++ {
		assert.Less(t, ids[i-1], ids[i])
	}

	position, err := s.Cursors.Get(ctx, "ledger:fake")
	require.NoError(t, err)
	assert.Equal(t, ids[3], position)
}

func TestRelay_SinkFailureKeepsCursor(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewShop(t)
	seedActivity(t, s)
	s.Clock.Advance(time.Minute)

	sink := &fakeSink{err: errors.New("broker down")}
	relay := ledger.NewRelay(s.Ledger, s.Cursors, sink, s.Clock, ledger.RelayConfig{}, zap.NewNop())

	_, err := relay.RunOnce(ctx)
	require.Error(t, err)
	position, err := s.Cursors.Get(ctx, "ledger:fake")
	require.NoError(t, err)
	assert.Zero(t, position)

	// 恢复后从头转发
	sink.err = nil
	n, err := relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}
