package repository

import "context"

// トランザクション内で使う約束
type TxRepos interface {
	Orders() OrderRepository
	OrderItems() OrderItemRepository
	CartItems() CartItemRepository
	Products() ProductRepository
	Variants() VariantRepository
	Stock() StockRepository
	Audits() AuditLogRepository
}

// UsecaseからTxの開始/commit/rollbackを隠す。
// 販売者パーティションごとに1トランザクションを張る用途で使う。
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}
