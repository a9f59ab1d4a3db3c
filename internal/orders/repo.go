package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lacucina/restaurant-backend/pkg/db/models"
	"github.com/lacucina/restaurant-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	for i := range order.Items {
		if order.Items[i].ID == uuid.Nil {
			order.Items[i].ID = uuid.New()
		}
		order.Items[i].OrderID = order.ID
	}
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("order_number = ?", orderNumber).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("gateway_order_id = ?", gatewayOrderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateStatusIfPending(ctx context.Context, id uuid.UUID, update StatusUpdate) (bool, error) {
	updates := map[string]any{
		"status":         update.Status,
		"payment_status": update.PaymentStatus,
		"updated_at":     time.Now().UTC(),
	}
	if update.GatewayStatus != nil {
		updates["gateway_status"] = int(*update.GatewayStatus)
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, enums.OrderStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) UpdatePaymentIfPending(ctx context.Context, id uuid.UUID, method enums.PaymentMethod, status enums.PaymentStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ? AND payment_status IN ?", id, enums.OrderStatusPending, enums.PaymentStatusesBefore(status)).
		Updates(map[string]any{
			"payment_method": method,
			"payment_status": status,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) NextGatewayAttempt(ctx context.Context, id uuid.UUID) (int, error) {
	var attempts []int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND gateway_order_id IS NULL", id).
			Update("gateway_attempt", gorm.Expr("gateway_attempt + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&models.Order{}).
			Where("id = ?", id).
			Pluck("gateway_attempt", &attempts).Error
	})
	if err != nil {
		return 0, err
	}
	if len(attempts) == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return attempts[0], nil
}

func (r *repository) SetGatewayOrderID(ctx context.Context, id uuid.UUID, gatewayOrderID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND gateway_order_id IS NULL", id).
		Updates(map[string]any{
			"gateway_order_id": gatewayOrderID,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListPendingWithGatewayReference(ctx context.Context, createdAfter, createdBefore time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	query := r.db.WithContext(ctx).
		Where("status = ? AND gateway_order_id IS NOT NULL", enums.OrderStatusPending).
		Where("created_at > ? AND created_at < ?", createdAfter, createdBefore).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) CountCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("created_at < ?", cutoff).
		Count(&count).Error
	return count, err
}

func (r *repository) ListCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	query := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	expired := r.db.Model(&models.Order{}).Select("id").Where("created_at < ?", cutoff)

	// Items go first so the purge does not depend on the FK cascade being
	// enabled. Both statements bind only the cutoff, whatever the backlog.
	if err := r.db.WithContext(ctx).
		Where("order_id IN (?)", expired).
		Delete(&models.OrderItem{}).Error; err != nil {
		return 0, err
	}
	res := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.Order{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
