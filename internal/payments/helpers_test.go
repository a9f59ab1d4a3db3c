package payments

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lacucina/restaurant-backend/internal/orders"
	"github.com/lacucina/restaurant-backend/pkg/acquiring"
	"github.com/lacucina/restaurant-backend/pkg/db/dbtest"
	"github.com/lacucina/restaurant-backend/pkg/db/models"
	"github.com/lacucina/restaurant-backend/pkg/enums"
	"github.com/lacucina/restaurant-backend/pkg/logger"
	pkgredis "github.com/lacucina/restaurant-backend/pkg/redis"
)

func newTestLogger(buf *bytes.Buffer) *logger.Logger {
	if buf == nil {
		buf = &bytes.Buffer{}
	}
	return logger.New(logger.Options{ServiceName: "payments-test", Output: buf})
}

func newTestRepo(t *testing.T) orders.Repository {
	t.Helper()
	return orders.NewRepository(dbtest.Open(t).DB())
}

func createOrder(t *testing.T, repo orders.Repository, total string, mutate func(*models.Order)) *models.Order {
	t.Helper()
	now := time.Now().UTC()
	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   fmt.Sprintf("1700000000000%04d", time.Now().Nanosecond()%10000),
		Status:        enums.OrderStatusPending,
		TotalAmount:   decimal.RequireFromString(total),
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		CustomerPhone: "+3900000000",
		PaymentMethod: enums.PaymentMethodCash,
		PaymentStatus: enums.PaymentStatusUnpaid,
		CreatedAt:     now,
		UpdatedAt:     now,
		Items: []models.OrderItem{{
			ProductID:   uuid.New(),
			ProductKind: enums.ProductKindDish,
			Name:        "Menu",
			Quantity:    1,
			UnitPrice:   decimal.RequireFromString(total),
		}},
	}
	if mutate != nil {
		mutate(order)
	}
	require.NoError(t, repo.Create(context.Background(), order))
	return order
}

func mustLoad(t *testing.T, repo orders.Repository, id uuid.UUID) *models.Order {
	t.Helper()
	order, err := repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return order
}

// fakeStatusGateway returns queued responses, then repeats the last one.
type fakeStatusGateway struct {
	mu        sync.Mutex
	responses []statusReply
	calls     int
	ids       []string
}

type statusReply struct {
	status enums.GatewayStatus
	err    error
}

func (f *fakeStatusGateway) OrderStatus(ctx context.Context, gatewayOrderID string) (*acquiring.StatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, gatewayOrderID)
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	reply := f.responses[idx]
	if reply.err != nil {
		return nil, reply.err
	}
	return &acquiring.StatusResponse{OrderStatus: reply.status}, nil
}

type fakeRegistrar struct {
	requests []acquiring.RegisterRequest
	err      error
	nextID   func(n int) string
}

func (f *fakeRegistrar) Register(ctx context.Context, req acquiring.RegisterRequest) (*acquiring.RegisterResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	id := fmt.Sprintf("G%d", len(f.requests))
	if f.nextID != nil {
		id = f.nextID(len(f.requests))
	}
	return &acquiring.RegisterResponse{GatewayOrderID: id, FormURL: "https://gw.test/pay?mdOrder=" + id}, nil
}

// fakeGuardStore mimics the redis client used by the registration guard.
type fakeGuardStore struct {
	data   map[string]string
	getErr error
}

func newFakeGuardStore() *fakeGuardStore {
	return &fakeGuardStore{data: map[string]string{}}
}

func (f *fakeGuardStore) Get(ctx context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.data[key]
	if !ok {
		return "", pkgredis.Nil
	}
	return v, nil
}

func (f *fakeGuardStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	f.data[key] = fmt.Sprint(value)
	return nil
}

func (f *fakeGuardStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = fmt.Sprint(value)
	return true, nil
}

func (f *fakeGuardStore) DelIfValue(ctx context.Context, key, value string) (bool, error) {
	if v, ok := f.data[key]; !ok || v != value {
		return false, nil
	}
	delete(f.data, key)
	return true, nil
}

func (f *fakeGuardStore) RegistrationKey(orderID, token string) string {
	return strings.Join([]string{"test", orderID, token}, ":")
}

// racingRepo settles the order behind the reconciler's back right before its write.
type racingRepo struct {
	orders.Repository
	settleAs enums.OrderStatus
	failWith error
}

func (r *racingRepo) UpdateStatusIfPending(ctx context.Context, id uuid.UUID, update orders.StatusUpdate) (bool, error) {
	if r.failWith != nil {
		return false, r.failWith
	}
	if r.settleAs != "" {
		payment := enums.PaymentStatusFailed
		if r.settleAs == enums.OrderStatusConfirmed {
			payment = enums.PaymentStatusPaid
		}
		if _, err := r.Repository.UpdateStatusIfPending(ctx, id, orders.StatusUpdate{Status: r.settleAs, PaymentStatus: payment}); err != nil {
			return false, err
		}
	}
	return r.Repository.UpdateStatusIfPending(ctx, id, update)
}

var errBoom = errors.New("boom")
