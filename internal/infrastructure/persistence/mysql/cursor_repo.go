package mysql

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiebiao/storefront/internal/domain/inventory"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

type cursorRepository struct {
	db *gorm.DB
}

// NewCursorRepository 创建中继进度仓储
func NewCursorRepository(db *gorm.DB) inventory.CursorRepository {
	return &cursorRepository{db: db}
}

// Get 读取进度,不存在时返回0
func (r *cursorRepository) Get(ctx context.Context, name string) (uint64, error) {
	var model RelayCursorModel
	err := dbFrom(ctx, r.db).Where("name = ?", name).First(&model).Error
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, apperrors.Wrap(err, "查询中继进度失败")
	}
	return model.Position, nil
}

func (r *cursorRepository) Save(ctx context.Context, name string, position uint64) error {
	err := dbFrom(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"position", "updated_at"}),
	}).Create(&RelayCursorModel{Name: name, Position: position}).Error
	if err != nil {
		return apperrors.Wrap(err, "保存中继进度失败")
	}
	return nil
}
