package port

import (
	"context"
	"io"
	"time"

	"github.com/niksmo/keyshop/internal/core/domain"
)

type ProductsReader interface {
	GetProduct(ctx context.Context, id int64) (domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListInStock(ctx context.Context) ([]domain.Product, error)
	ListFeatured(ctx context.Context, limit int) ([]domain.Product, error)
	SearchProducts(ctx context.Context, substr string) ([]domain.Product, error)
}

type ProductsStorage interface {
	ProductsReader
	CreateProduct(ctx context.Context, p domain.Product, keys []string) (domain.Product, error)
	UpdateProduct(ctx context.Context, p domain.Product, keys []string) (domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	ReconcileStock(ctx context.Context, id int64) (domain.Product, error)
}

type KeyPool interface {
	AvailableCount(ctx context.Context, productID int64) (int, error)
	AddKeys(ctx context.Context, productID int64, values []string) error
	Take(ctx context.Context, productID int64, n int) ([]domain.ActivationKey, error)
}

// PurchaseStorage commits an order atomically: keys, stock, purchase
// record and its delivery, already claimed by the caller.
type PurchaseStorage interface {
	CommitPurchase(ctx context.Context, order domain.Order) (domain.Purchase, domain.Delivery, error)
}

type DeliveryStorage interface {
	PurchaseDelivery(ctx context.Context, purchaseID int64) (domain.Delivery, error)
	PendingDeliveries(ctx context.Context, limit int, staleBefore time.Time) ([]domain.Delivery, error)
	ClaimDelivery(ctx context.Context, id int64, staleBefore time.Time) (bool, error)
	MarkDeliverySent(ctx context.Context, id int64) error
	MarkDeliveryFailed(ctx context.Context, id int64, reason string, final bool) error
}

type UsersStorage interface {
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

type ReviewsStorage interface {
	CreateReview(ctx context.Context, r domain.Review) (domain.Review, error)
	ListReviews(ctx context.Context) ([]domain.Review, error)
	DeleteReview(ctx context.Context, id int64) error
}

type SessionStore interface {
	Load(ctx context.Context, id string) (domain.Session, error)
	Save(ctx context.Context, s domain.Session) error
	Delete(ctx context.Context, id string) error
}

type ImageStore interface {
	SaveImage(ctx context.Context, filename string, content io.Reader) (string, error)
	DeleteImage(ctx context.Context, ref string) error
}

type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

type PurchaseEventsProducer interface {
	ProducePurchase(ctx context.Context, p domain.Purchase) error
}

type TokenIssuer interface {
	IssueToken(u domain.User) (string, error)
	ParseToken(token string) (domain.Claims, error)
}

type PasswordHasher interface {
	Hash(password string) ([]byte, error)
	Compare(hash []byte, password string) error
}

// Inbound ports used by the http layer.

type CatalogService interface {
	Product(ctx context.Context, id int64) (domain.Product, error)
	Products(ctx context.Context) ([]domain.Product, error)
	InStock(ctx context.Context) ([]domain.Product, error)
	Featured(ctx context.Context) ([]domain.Product, error)
	Search(ctx context.Context, substr string) ([]domain.Product, error)
	CreateProduct(ctx context.Context, in domain.ProductInput) (domain.Product, error)
	UpdateProduct(ctx context.Context, id int64, in domain.ProductInput) (domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	AddKeys(ctx context.Context, id int64, keys []string) (domain.Product, error)
	ReconcileStock(ctx context.Context, id int64) (domain.Product, error)
}

type CartService interface {
	Cart(ctx context.Context, sessionID string) (domain.Cart, error)
	AddToCart(ctx context.Context, sessionID string, productID int64, quantity int) (domain.Cart, error)
	UpdateCartLine(ctx context.Context, sessionID string, productID int64, quantity int) (domain.Cart, error)
	RemoveFromCart(ctx context.Context, sessionID string, productID int64) (domain.Cart, error)
	ClearCart(ctx context.Context, sessionID string) error
}

type CheckoutService interface {
	Checkout(ctx context.Context, sessionID, buyerEmail string) (domain.Purchase, error)
	Delivery(ctx context.Context, purchaseID int64) (domain.Delivery, error)
}

type UserService interface {
	Register(ctx context.Context, name, email, password string) (domain.User, error)
	Authenticate(ctx context.Context, email, password string) (domain.User, error)
	User(ctx context.Context, id int64) (domain.User, error)
	Users(ctx context.Context) ([]domain.User, error)
	DeleteUser(ctx context.Context, id int64) error
	IssueToken(ctx context.Context, email, password string) (string, error)
	ParseToken(token string) (domain.Claims, error)
}

type ReviewService interface {
	Reviews(ctx context.Context) ([]domain.Review, error)
	AddReview(ctx context.Context, username, text string) (domain.Review, error)
	DeleteReview(ctx context.Context, id int64) error
}

type SessionService interface {
	Session(ctx context.Context, id string) (domain.Session, error)
	Login(ctx context.Context, sessionID string, userID int64) error
	Logout(ctx context.Context, sessionID string) error
}
