package domain

import (
	"net/mail"
	"strings"
	"time"
)

type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	// DeliverySending marks a delivery claimed by a sender.
	DeliverySending DeliveryStatus = "sending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

type (
	// A PurchaseLine is a cart line frozen at checkout.
	PurchaseLine struct {
		ProductID   int64
		ProductName string
		Quantity    int
		UnitPrice   int64
	}

	// A RedeemedKey pairs a consumed key value with its product name.
	RedeemedKey struct {
		ProductID   int64
		ProductName string
		Value       string
	}

	Purchase struct {
		ID        int64
		Email     string
		Lines     []PurchaseLine
		Keys      []RedeemedKey
		Total     int64
		Delivery  DeliveryStatus
		CreatedAt time.Time
	}

	// An Order is a purchase request that has not touched storage yet.
	Order struct {
		Email     string
		Lines     []PurchaseLine
		Subject   string
		CreatedAt time.Time
	}

	// A Delivery is an outbound notification carrying redeemed keys.
	Delivery struct {
		ID         int64
		PurchaseID int64
		Recipient  string
		Subject    string
		Body       string
		Status     DeliveryStatus
		Attempts   int
		LastError  string
		CreatedAt  time.Time
		UpdatedAt  time.Time
	}

	// A Notification is a single message to send.
	Notification struct {
		Recipient string
		Subject   string
		Body      string
	}
)

// NewOrder freezes the cart lines in product id order.
func NewOrder(cart Cart, email, subject string) Order {
	items := cart.Items()
	lines := make([]PurchaseLine, len(items))
	for i, it := range items {
		lines[i] = PurchaseLine{
			ProductID:   it.ProductID,
			ProductName: it.Name,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		}
	}
	return Order{
		Email:     email,
		Lines:     lines,
		Subject:   subject,
		CreatedAt: time.Now().UTC(),
	}
}

func (o Order) Total() int64 {
	var total int64
	for _, l := range o.Lines {
		total += l.UnitPrice * int64(l.Quantity)
	}
	return total
}

// KeysMessage renders one "<key> <product name>" pair per line.
func KeysMessage(keys []RedeemedKey) string {
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k.Value + " " + k.ProductName
	}
	return strings.Join(lines, "\n")
}

// ValidateEmail accepts a bare address without display name.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return NewValidationError("email", "required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return NewValidationError("email", "malformed address")
	}
	return nil
}

func (d Delivery) Notification() Notification {
	return Notification{
		Recipient: d.Recipient,
		Subject:   d.Subject,
		Body:      d.Body,
	}
}
