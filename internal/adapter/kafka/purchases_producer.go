package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/niksmo/keyshop/internal/core/domain"
	"github.com/niksmo/keyshop/internal/core/port"
	"github.com/niksmo/keyshop/pkg/schema"
	"github.com/twmb/franz-go/pkg/kgo"
)

var _ port.PurchaseEventsProducer = (*PurchasesProducer)(nil)

type PurchasesProducer struct {
	cl      ProducerClient
	encoder Encoder
}

func NewPurchasesProducer(
	opts ...ProducerOpt,
) (PurchasesProducer, error) {
	const op = "NewPurchasesProducer"

	if len(opts) != 2 {
		panic(fmt.Errorf("%s: %w", op, ErrTooFewOpts)) // develop mistake
	}

	var options producerOpts
	for _, opt := range opts {
		if err := opt(&options); err != nil {
			return PurchasesProducer{}, fmt.Errorf("%s: %w", op, err)
		}
	}
	return PurchasesProducer{options.cl, options.encoder}, nil
}

func (p PurchasesProducer) Close() {
	const op = "PurchasesProducer.Close"
	log := slog.With("op", op)
	log.Info("closing producer...")
	p.cl.Close()
	log.Info("producer is closed")
}

func (p PurchasesProducer) ProducePurchase(
	ctx context.Context, purchase domain.Purchase,
) error {
	const op = "PurchasesProducer.ProducePurchase"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	r, err := p.createRecord(purchase)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	res := p.cl.ProduceSync(ctx, r)
	if err := res.FirstErr(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (p PurchasesProducer) createRecord(
	purchase domain.Purchase,
) (*kgo.Record, error) {
	v, err := p.encoder.Encode(toSchema(purchase))
	if err != nil {
		return nil, err
	}
	key := strconv.FormatInt(purchase.ID, 10)
	return &kgo.Record{Key: []byte(key), Value: v}, nil
}

func toSchema(p domain.Purchase) (s schema.PurchaseCompletedV1) {
	s.PurchaseID = p.ID
	s.Email = p.Email
	s.Total = p.Total
	s.Delivery = string(p.Delivery)
	s.CreatedAt = p.CreatedAt

	s.Items = make([]schema.PurchaseItemV1, len(p.Lines))
	for i, l := range p.Lines {
		s.Items[i].ProductID = l.ProductID
		s.Items[i].ProductName = l.ProductName
		s.Items[i].Quantity = l.Quantity
		s.Items[i].UnitPrice = l.UnitPrice
	}
	return s
}
