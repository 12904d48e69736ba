package service

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/niksmo/keyshop/internal/core/domain"
	"github.com/stretchr/testify/mock"
)

// memSessions is a session store kept in a map.
type memSessions struct {
	mu   sync.Mutex
	data map[string]domain.Session
}

func newMemSessions() *memSessions {
	return &memSessions{data: make(map[string]domain.Session)}
}

func (m *memSessions) Load(_ context.Context, id string) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[id]
	if !ok {
		return domain.Session{}, domain.NewNotFoundError("session", id)
	}
	return s, nil
}

func (m *memSessions) Save(_ context.Context, s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[s.ID] = s
	return nil
}

func (m *memSessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

type MockProducts struct {
	mock.Mock
}

func (m *MockProducts) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Product), args.Error(1)
}

func (m *MockProducts) ListProducts(ctx context.Context) ([]domain.Product, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Product), args.Error(1)
}

func (m *MockProducts) ListInStock(ctx context.Context) ([]domain.Product, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Product), args.Error(1)
}

func (m *MockProducts) ListFeatured(ctx context.Context, limit int) ([]domain.Product, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]domain.Product), args.Error(1)
}

func (m *MockProducts) SearchProducts(ctx context.Context, substr string) ([]domain.Product, error) {
	args := m.Called(ctx, substr)
	return args.Get(0).([]domain.Product), args.Error(1)
}

func (m *MockProducts) CreateProduct(
	ctx context.Context, p domain.Product, keys []string,
) (domain.Product, error) {
	args := m.Called(ctx, p, keys)
	return args.Get(0).(domain.Product), args.Error(1)
}

func (m *MockProducts) UpdateProduct(
	ctx context.Context, p domain.Product, keys []string,
) (domain.Product, error) {
	args := m.Called(ctx, p, keys)
	return args.Get(0).(domain.Product), args.Error(1)
}

func (m *MockProducts) DeleteProduct(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockProducts) ReconcileStock(ctx context.Context, id int64) (domain.Product, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Product), args.Error(1)
}

type MockKeyPool struct {
	mock.Mock
}

func (m *MockKeyPool) AvailableCount(ctx context.Context, productID int64) (int, error) {
	args := m.Called(ctx, productID)
	return args.Int(0), args.Error(1)
}

func (m *MockKeyPool) AddKeys(ctx context.Context, productID int64, values []string) error {
	return m.Called(ctx, productID, values).Error(0)
}

func (m *MockKeyPool) Take(
	ctx context.Context, productID int64, n int,
) ([]domain.ActivationKey, error) {
	args := m.Called(ctx, productID, n)
	return args.Get(0).([]domain.ActivationKey), args.Error(1)
}

type MockImages struct {
	mock.Mock
}

func (m *MockImages) SaveImage(
	ctx context.Context, filename string, content io.Reader,
) (string, error) {
	args := m.Called(ctx, filename, content)
	return args.String(0), args.Error(1)
}

func (m *MockImages) DeleteImage(ctx context.Context, ref string) error {
	return m.Called(ctx, ref).Error(0)
}

type MockPurchases struct {
	mock.Mock
}

func (m *MockPurchases) CommitPurchase(
	ctx context.Context, order domain.Order,
) (domain.Purchase, domain.Delivery, error) {
	args := m.Called(ctx, order)
	return args.Get(0).(domain.Purchase), args.Get(1).(domain.Delivery), args.Error(2)
}

type MockDeliveries struct {
	mock.Mock
}

func (m *MockDeliveries) PurchaseDelivery(
	ctx context.Context, purchaseID int64,
) (domain.Delivery, error) {
	args := m.Called(ctx, purchaseID)
	return args.Get(0).(domain.Delivery), args.Error(1)
}

func (m *MockDeliveries) PendingDeliveries(
	ctx context.Context, limit int, staleBefore time.Time,
) ([]domain.Delivery, error) {
	args := m.Called(ctx, limit, staleBefore)
	return args.Get(0).([]domain.Delivery), args.Error(1)
}

func (m *MockDeliveries) ClaimDelivery(
	ctx context.Context, id int64, staleBefore time.Time,
) (bool, error) {
	args := m.Called(ctx, id, staleBefore)
	return args.Bool(0), args.Error(1)
}

func (m *MockDeliveries) MarkDeliverySent(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockDeliveries) MarkDeliveryFailed(
	ctx context.Context, id int64, reason string, final bool,
) error {
	return m.Called(ctx, id, reason, final).Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, n domain.Notification) error {
	return m.Called(ctx, n).Error(0)
}

type MockEvents struct {
	mock.Mock
}

func (m *MockEvents) ProducePurchase(ctx context.Context, p domain.Purchase) error {
	return m.Called(ctx, p).Error(0)
}

type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	args := m.Called(ctx, u)
	return args.Get(0).(domain.User), args.Error(1)
}

func (m *MockUsers) GetUser(ctx context.Context, id int64) (domain.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.User), args.Error(1)
}

func (m *MockUsers) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(domain.User), args.Error(1)
}

func (m *MockUsers) ListUsers(ctx context.Context) ([]domain.User, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.User), args.Error(1)
}

func (m *MockUsers) DeleteUser(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type MockHasher struct {
	mock.Mock
}

func (m *MockHasher) Hash(password string) ([]byte, error) {
	args := m.Called(password)
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockHasher) Compare(hash []byte, password string) error {
	return m.Called(hash, password).Error(0)
}

type MockTokens struct {
	mock.Mock
}

func (m *MockTokens) IssueToken(u domain.User) (string, error) {
	args := m.Called(u)
	return args.String(0), args.Error(1)
}

func (m *MockTokens) ParseToken(token string) (domain.Claims, error) {
	args := m.Called(token)
	return args.Get(0).(domain.Claims), args.Error(1)
}

type MockReviews struct {
	mock.Mock
}

func (m *MockReviews) CreateReview(ctx context.Context, r domain.Review) (domain.Review, error) {
	args := m.Called(ctx, r)
	return args.Get(0).(domain.Review), args.Error(1)
}

func (m *MockReviews) ListReviews(ctx context.Context) ([]domain.Review, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Review), args.Error(1)
}

func (m *MockReviews) DeleteReview(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}
