package httphandler

import (
	"path"
	"time"

	"github.com/niksmo/keyshop/internal/core/domain"
)

type (
	Product struct {
		ID            int64    `json:"id"`
		Name          string   `json:"name"`
		Price         int64    `json:"price"`
		Stock         int      `json:"stock"`
		Description   string   `json:"description"`
		Images        []string `json:"images"`
		AvailableKeys int      `json:"available_keys"`
	}

	// APIProduct is the public API projection of a product.
	APIProduct struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		Price int64  `json:"price"`
		Stock int    `json:"stock"`
	}

	CartLine struct {
		ProductID int64  `json:"product_id"`
		Name      string `json:"name"`
		UnitPrice int64  `json:"unit_price"`
		Image     string `json:"image,omitempty"`
		Quantity  int    `json:"quantity"`
		Subtotal  int64  `json:"subtotal"`
	}

	Cart struct {
		Lines []CartLine `json:"lines"`
		Total int64      `json:"total"`
		Count int        `json:"count"`
	}

	PurchaseLine struct {
		ProductID   int64  `json:"product_id"`
		ProductName string `json:"product_name"`
		Quantity    int    `json:"quantity"`
		UnitPrice   int64  `json:"unit_price"`
	}

	// Purchase never exposes key values; they travel by email only.
	Purchase struct {
		ID        int64          `json:"id"`
		Email     string         `json:"email"`
		Lines     []PurchaseLine `json:"lines"`
		Keys      int            `json:"keys"`
		Total     int64          `json:"total"`
		Delivery  string         `json:"delivery"`
		CreatedAt time.Time      `json:"created_at"`
	}

	Delivery struct {
		PurchaseID int64     `json:"purchase_id"`
		Recipient  string    `json:"recipient"`
		Status     string    `json:"status"`
		Attempts   int       `json:"attempts"`
		LastError  string    `json:"last_error,omitempty"`
		UpdatedAt  time.Time `json:"updated_at"`
	}

	User struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
		Admin bool   `json:"admin,omitempty"`
	}

	Review struct {
		ID        int64     `json:"id"`
		Username  string    `json:"username"`
		Text      string    `json:"review"`
		CreatedAt time.Time `json:"created_at"`
	}
)

type (
	updateCartItemRequest struct {
		Quantity int `json:"quantity"`
	}

	// checkoutRequest accepts a card number for client compatibility;
	// no payment is taken.
	checkoutRequest struct {
		Email string `json:"email" binding:"required"`
		Card  string `json:"card"`
	}

	registerRequest struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	credentialsRequest struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	reviewRequest struct {
		Username string `json:"username"`
		Text     string `json:"review" binding:"required"`
	}
)

// envelope wraps API payloads.
type envelope struct {
	Response any `json:"response"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// imageURL joins a stored reference to the public media prefix.
func imageURL(prefix, ref string) string {
	if ref == "" {
		return ""
	}
	return path.Join("/", prefix, ref)
}

func toProduct(p domain.Product, mediaPrefix string) Product {
	images := make([]string, 0, len(p.Images))
	for _, ref := range p.Images {
		if ref != "" {
			images = append(images, imageURL(mediaPrefix, ref))
		}
	}
	return Product{
		ID:            p.ID,
		Name:          p.Name,
		Price:         p.Price,
		Stock:         p.Stock,
		Description:   p.Description,
		Images:        images,
		AvailableKeys: p.AvailableKeys,
	}
}

func toProducts(ps []domain.Product, mediaPrefix string) []Product {
	out := make([]Product, len(ps))
	for i, p := range ps {
		out[i] = toProduct(p, mediaPrefix)
	}
	return out
}

func toAPIProduct(p domain.Product) APIProduct {
	return APIProduct{ID: p.ID, Name: p.Name, Price: p.Price, Stock: p.Stock}
}

func toCart(c domain.Cart, mediaPrefix string) Cart {
	items := c.Items()
	out := Cart{Lines: make([]CartLine, len(items)), Total: c.Total()}
	for i, l := range items {
		out.Lines[i] = CartLine{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Image:     imageURL(mediaPrefix, l.Image),
			Quantity:  l.Quantity,
			Subtotal:  l.Subtotal(),
		}
		out.Count += l.Quantity
	}
	return out
}

func toPurchase(p domain.Purchase) Purchase {
	lines := make([]PurchaseLine, len(p.Lines))
	for i, l := range p.Lines {
		lines[i] = PurchaseLine{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
		}
	}
	return Purchase{
		ID:        p.ID,
		Email:     p.Email,
		Lines:     lines,
		Keys:      len(p.Keys),
		Total:     p.Total,
		Delivery:  string(p.Delivery),
		CreatedAt: p.CreatedAt,
	}
}

func toDelivery(d domain.Delivery) Delivery {
	return Delivery{
		PurchaseID: d.PurchaseID,
		Recipient:  d.Recipient,
		Status:     string(d.Status),
		Attempts:   d.Attempts,
		LastError:  d.LastError,
		UpdatedAt:  d.UpdatedAt,
	}
}

func toUser(u domain.User) User {
	return User{ID: u.ID, Name: u.Name, Email: u.Email, Admin: u.Admin}
}

func toReview(r domain.Review) Review {
	return Review{
		ID:        r.ID,
		Username:  r.Username,
		Text:      r.Text,
		CreatedAt: r.CreatedAt,
	}
}
