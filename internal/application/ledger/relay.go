package ledger

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xiebiao/storefront/internal/domain/inventory"
	"github.com/xiebiao/storefront/pkg/clock"
	"github.com/xiebiao/storefront/pkg/metrics"
)

// Sink 流水的下游(可重放的事件日志)
type Sink interface {
	Name() string
	Write(ctx context.Context, records []Record) error
}

// RelayConfig 中继配置
type RelayConfig struct {
	Interval  time.Duration
	BatchSize int

	// SettleWindow 只转发创建时间早于now-SettleWindow的流水
	// 自增ID按分配顺序而不是提交顺序可见,等待窗口内的事务提交后再推进游标
	SettleWindow time.Duration
}

// Relay 把新流水按ID顺序转发到Sink,进度保存在游标表
// 至少一次投递: 写入Sink成功后才保存游标,下游按流水ID去重
type Relay struct {
	ledger  inventory.LedgerRepository
	cursors inventory.CursorRepository
	sink    Sink
	clock   clock.Clock
	cfg     RelayConfig
	logger  *zap.Logger
}

// NewRelay 创建中继
func NewRelay(
	ledger inventory.LedgerRepository,
	cursors inventory.CursorRepository,
	sink Sink,
	clk clock.Clock,
	cfg RelayConfig,
	logger *zap.Logger,
) *Relay {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.SettleWindow <= 0 {
		cfg.SettleWindow = 2 * time.Second
	}
	return &Relay{
		ledger:  ledger,
		cursors: cursors,
		sink:    sink,
		clock:   clk,
		cfg:     cfg,
		logger:  logger,
	}
}

func (r *Relay) cursorName() string {
	return "ledger:" + r.sink.Name()
}

// Run 定期转发,阻塞到ctx取消
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("流水中继已停止")
			return
		case <-ticker.C:
			for {
				n, err := r.RunOnce(ctx)
				if err != nil {
					r.logger.Error("流水中继失败", zap.String("sink", r.sink.Name()), zap.Error(err))
					break
				}
				if n < r.cfg.BatchSize {
					break
				}
			}
		}
	}
}

// RunOnce 转发一批,返回转发条数
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	position, err := r.cursors.Get(ctx, r.cursorName())
	if err != nil {
		return 0, err
	}

	before := r.clock.Now().Add(-r.cfg.SettleWindow)
	entries, err := r.ledger.ListAfterID(ctx, position, before, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, ToRecord(e))
	}
	if err := r.sink.Write(ctx, records); err != nil {
		return 0, err
	}

	last := entries[len(entries)-1].ID
	if err := r.cursors.Save(ctx, r.cursorName(), last); err != nil {
		return 0, err
	}

	metrics.RecordLedgerExport(r.sink.Name(), len(records))
	r.logger.Debug("流水已转发",
		zap.String("sink", r.sink.Name()),
		zap.Int("count", len(records)),
		zap.Uint64("position", last),
	)
	return len(records), nil
}
