// Package eventlog 把库存流水写入Kafka主题,供下游重放和审计
package eventlog

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/xiebiao/storefront/internal/application/ledger"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

// Config Kafka配置
type Config struct {
	Brokers []string
	Topic   string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// LedgerSink 流水写入器
// 消息Key为库存项ID,同一库存项的流水落在同一分区,保持顺序
type LedgerSink struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

// NewLedgerSink 创建流水写入器
func NewLedgerSink(cfg Config, logger *zap.Logger) *LedgerSink {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}
	return newLedgerSink(w, cfg.Topic, logger)
}

func newLedgerSink(w messageWriter, topic string, logger *zap.Logger) *LedgerSink {
	return &LedgerSink{writer: w, topic: topic, logger: logger}
}

// Name 游标名称后缀
func (s *LedgerSink) Name() string {
	return "kafka"
}

// Write 批量写入,全部确认后返回
func (s *LedgerSink) Write(ctx context.Context, records []ledger.Record) error {
	msgs := make([]kafka.Message, 0, len(records))
	for _, r := range records {
		value, err := json.Marshal(r)
		if err != nil {
			return apperrors.Wrap(err, "序列化库存流水失败")
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(r.StockItemID),
			Value: value,
			Headers: []kafka.Header{
				{Key: "ledger-id", Value: []byte(strconv.FormatUint(r.ID, 10))},
				{Key: "reason", Value: []byte(r.Reason)},
			},
		})
	}

	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		s.logger.Error("写入Kafka失败", zap.String("topic", s.topic), zap.Int("count", len(msgs)), zap.Error(err))
		return apperrors.Wrap(err, "写入Kafka失败")
	}
	return nil
}

// Close 关闭写入器,刷新缓冲区
func (s *LedgerSink) Close() error {
	return s.writer.Close()
}
