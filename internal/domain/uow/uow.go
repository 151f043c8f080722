// Package uow 定义跨仓储的事务边界
package uow

import "context"

// Transactor 事务执行器
// fn内通过ctx调用的所有Repository操作都处于同一事务中;
// 若ctx中已存在事务,则加入该事务而不是开启新事务
type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}
