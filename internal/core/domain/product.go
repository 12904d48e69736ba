package domain

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// MaxProductImages is the number of image slots a product has.
const MaxProductImages = 3

type (
	// A Product is a catalog record.
	//
	// Price is in the smallest currency unit. AvailableKeys is a read
	// projection of the unconsumed activation keys owned by the product.
	Product struct {
		ID            int64
		Name          string
		Price         int64
		Stock         int
		Description   string
		Images        []string
		AvailableKeys int
	}

	// An ActivationKey belongs to exactly one product and is deleted on
	// redemption.
	ActivationKey struct {
		ID        int64
		Value     string
		ProductID int64
	}

	// A ProductInput carries admin supplied fields for create and update.
	//
	// Images holds up to [MaxProductImages] uploads indexed by slot, nil
	// entries leave the slot unchanged on update.
	ProductInput struct {
		Name        string
		Price       int64
		Stock       int
		Description string
		Images      [MaxProductImages]*Upload
		Keys        []string
	}

	// An Upload is a file received from a client.
	Upload struct {
		Filename string
		Content  io.Reader
	}
)

// PrimaryImage returns the first non-empty image reference.
func (p Product) PrimaryImage() string {
	for _, ref := range p.Images {
		if ref != "" {
			return ref
		}
	}
	return ""
}

func (p Product) InStock() bool {
	return p.Stock > 0
}

func (in ProductInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return NewValidationError("name", "required")
	}
	if len(in.Name) > 200 {
		return NewValidationError("name", "too long")
	}
	if in.Price < 0 {
		return NewValidationError("price", "must not be negative")
	}
	if in.Stock < 0 {
		return NewValidationError("stock", "must not be negative")
	}
	return nil
}

// ParseKeys reads one activation key per line.
//
// Surrounding whitespace is trimmed and blank lines are skipped.
func ParseKeys(r io.Reader) ([]string, error) {
	const op = "domain.ParseKeys"

	var keys []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		k := strings.TrimSpace(sc.Text())
		if k == "" {
			continue
		}
		keys = append(keys, k)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return keys, nil
}
