package mysql

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiebiao/storefront/internal/domain/payment"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

// paymentRepository 支付记录仓储
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付记录仓储
func NewPaymentRepository(db *gorm.DB) payment.Repository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	if err := dbFrom(ctx, r.db).Create(toPaymentModel(p)).Error; err != nil {
		if isDuplicateError(err) {
			return apperrors.New(apperrors.ErrCodeDuplicateEntry, "支付记录已存在")
		}
		return apperrors.Wrap(err, "创建支付记录失败")
	}
	return nil
}

func (r *paymentRepository) FindByIntentID(ctx context.Context, paymentIntentID string) (*payment.Payment, error) {
	var model PaymentModel
	err := dbFrom(ctx, r.db).Where("payment_intent_id = ?", paymentIntentID).First(&model).Error
	if err != nil {
		if isNotFound(err) {
			return nil, payment.ErrPaymentNotFound
		}
		return nil, apperrors.Wrap(err, "查询支付记录失败")
	}
	return toPaymentEntity(&model), nil
}

func (r *paymentRepository) FindSucceededByOrder(ctx context.Context, orderID string) (*payment.Payment, error) {
	var model PaymentModel
	err := dbFrom(ctx, r.db).
		Where("order_id = ? AND status = ?", orderID, string(payment.StatusSucceeded)).
		Order("created_at DESC").
		First(&model).Error
	if err != nil {
		if isNotFound(err) {
			return nil, payment.ErrPaymentNotFound
		}
		return nil, apperrors.Wrap(err, "查询支付记录失败")
	}
	return toPaymentEntity(&model), nil
}

// LockByID 行锁只在事务内有效,调用方必须已开启事务
func (r *paymentRepository) LockByID(ctx context.Context, id string) (*payment.Payment, error) {
	var model PaymentModel
	err := dbFrom(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&model).Error
	if err != nil {
		if isNotFound(err) {
			return nil, payment.ErrPaymentNotFound
		}
		return nil, apperrors.Wrap(err, "锁定支付记录失败")
	}
	return toPaymentEntity(&model), nil
}

// Upsert 按payment_intent_id插入或更新
// 重复投递的回调只会更新同一条记录
func (r *paymentRepository) Upsert(ctx context.Context, p *payment.Payment) error {
	err := dbFrom(ctx, r.db).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "payment_intent_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "amount", "currency", "checkout_session_id", "updated_at",
		}),
	}).Create(toPaymentModel(p)).Error
	if err != nil {
		return apperrors.Wrap(err, "保存支付记录失败")
	}
	return nil
}

func (r *paymentRepository) UpdateStatus(ctx context.Context, id string, status payment.Status) error {
	result := dbFrom(ctx, r.db).Model(&PaymentModel{}).Where("id = ?", id).
		Update("status", string(status))
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "更新支付状态失败")
	}
	if result.RowsAffected == 0 {
		return payment.ErrPaymentNotFound
	}
	return nil
}

// refundRepository 退款记录仓储
type refundRepository struct {
	db *gorm.DB
}

// NewRefundRepository 创建退款记录仓储
func NewRefundRepository(db *gorm.DB) payment.RefundRepository {
	return &refundRepository{db: db}
}

func (r *refundRepository) Create(ctx context.Context, rf *payment.Refund) error {
	if err := dbFrom(ctx, r.db).Create(toRefundModel(rf)).Error; err != nil {
		return apperrors.Wrap(err, "创建退款记录失败")
	}
	return nil
}

func (r *refundRepository) Update(ctx context.Context, rf *payment.Refund) error {
	result := dbFrom(ctx, r.db).Model(&RefundModel{}).Where("id = ?", rf.ID).
		Updates(map[string]interface{}{
			"status":            string(rf.Status),
			"gateway_refund_id": rf.GatewayRefundID,
			"updated_at":        rf.UpdatedAt,
		})
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "更新退款记录失败")
	}
	return nil
}

func (r *refundRepository) SumActive(ctx context.Context, paymentID string) (int64, error) {
	var sum int64
	err := dbFrom(ctx, r.db).Model(&RefundModel{}).
		Where("payment_id = ? AND status IN ?", paymentID,
			[]string{string(payment.RefundPending), string(payment.RefundSucceeded)}).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	if err != nil {
		return 0, apperrors.Wrap(err, "统计退款金额失败")
	}
	return sum, nil
}

func toPaymentModel(p *payment.Payment) *PaymentModel {
	return &PaymentModel{
		ID:                p.ID,
		OrderID:           p.OrderID,
		PaymentIntentID:   p.PaymentIntentID,
		CheckoutSessionID: p.CheckoutSessionID,
		Status:            string(p.Status),
		Amount:            p.Amount,
		Currency:          p.Currency,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func toPaymentEntity(m *PaymentModel) *payment.Payment {
	return &payment.Payment{
		ID:                m.ID,
		OrderID:           m.OrderID,
		PaymentIntentID:   m.PaymentIntentID,
		CheckoutSessionID: m.CheckoutSessionID,
		Status:            payment.Status(m.Status),
		Amount:            m.Amount,
		Currency:          m.Currency,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func toRefundModel(r *payment.Refund) *RefundModel {
	return &RefundModel{
		ID:              r.ID,
		PaymentID:       r.PaymentID,
		OrderID:         r.OrderID,
		Amount:          r.Amount,
		Reason:          r.Reason,
		Restock:         r.Restock,
		Status:          string(r.Status),
		GatewayRefundID: r.GatewayRefundID,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}
