package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/niksmo/keyshop/internal/core/domain"
	"github.com/niksmo/keyshop/internal/core/port"
)

const defaultFeaturedLimit = 4

var _ port.CatalogService = (*CatalogService)(nil)

type CatalogService struct {
	products      port.ProductsStorage
	keys          port.KeyPool
	images        port.ImageStore
	featuredLimit int
}

func NewCatalogService(
	products port.ProductsStorage,
	keys port.KeyPool,
	images port.ImageStore,
	featuredLimit int,
) CatalogService {
	if featuredLimit <= 0 {
		featuredLimit = defaultFeaturedLimit
	}
	return CatalogService{products, keys, images, featuredLimit}
}

func (s CatalogService) Product(
	ctx context.Context, id int64,
) (domain.Product, error) {
	const op = "CatalogService.Product"

	p, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func (s CatalogService) Products(ctx context.Context) ([]domain.Product, error) {
	const op = "CatalogService.Products"

	ps, err := s.products.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ps, nil
}

func (s CatalogService) InStock(ctx context.Context) ([]domain.Product, error) {
	const op = "CatalogService.InStock"

	ps, err := s.products.ListInStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ps, nil
}

// Featured returns in-stock products with the lowest stock first.
func (s CatalogService) Featured(ctx context.Context) ([]domain.Product, error) {
	const op = "CatalogService.Featured"

	ps, err := s.products.ListFeatured(ctx, s.featuredLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ps, nil
}

// Search matches substr against product names, case-sensitively.
func (s CatalogService) Search(
	ctx context.Context, substr string,
) ([]domain.Product, error) {
	const op = "CatalogService.Search"

	if substr == "" {
		return []domain.Product{}, nil
	}

	ps, err := s.products.SearchProducts(ctx, substr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ps, nil
}

func (s CatalogService) CreateProduct(
	ctx context.Context, in domain.ProductInput,
) (domain.Product, error) {
	const op = "CatalogService.CreateProduct"
	log := slog.With("op", op)

	if err := in.Validate(); err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	images := make([]string, domain.MaxProductImages)
	saved, err := s.saveImages(ctx, in.Images, images)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	p := domain.Product{
		Name:        in.Name,
		Price:       in.Price,
		Stock:       in.Stock,
		Description: in.Description,
		Images:      images,
	}

	p, err = s.products.CreateProduct(ctx, p, in.Keys)
	if err != nil {
		s.deleteImages(ctx, saved)
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("product created", "productID", p.ID, "keys", len(in.Keys))
	return p, nil
}

// UpdateProduct replaces product fields. Only the uploaded image slots are
// replaced; the previous files of those slots are removed afterwards.
func (s CatalogService) UpdateProduct(
	ctx context.Context, id int64, in domain.ProductInput,
) (domain.Product, error) {
	const op = "CatalogService.UpdateProduct"
	log := slog.With("op", op)

	if err := in.Validate(); err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	current, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	images := make([]string, domain.MaxProductImages)
	copy(images, current.Images)

	saved, err := s.saveImages(ctx, in.Images, images)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	var replaced []string
	for i, up := range in.Images {
		if up != nil && i < len(current.Images) && current.Images[i] != "" {
			replaced = append(replaced, current.Images[i])
		}
	}

	p := domain.Product{
		ID:          id,
		Name:        in.Name,
		Price:       in.Price,
		Stock:       in.Stock,
		Description: in.Description,
		Images:      images,
	}

	p, err = s.products.UpdateProduct(ctx, p, in.Keys)
	if err != nil {
		s.deleteImages(ctx, saved)
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	s.deleteImages(ctx, replaced)

	log.Info("product updated", "productID", id, "newKeys", len(in.Keys))
	return p, nil
}

// DeleteProduct removes the product with its keys, then its image files.
func (s CatalogService) DeleteProduct(ctx context.Context, id int64) error {
	const op = "CatalogService.DeleteProduct"
	log := slog.With("op", op)

	p, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.products.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.deleteImages(ctx, p.Images)

	log.Info("product deleted", "productID", id)
	return nil
}

// AddKeys appends keys to the product's pool. Stock is left as is.
func (s CatalogService) AddKeys(
	ctx context.Context, id int64, keys []string,
) (domain.Product, error) {
	const op = "CatalogService.AddKeys"
	log := slog.With("op", op)

	if len(keys) == 0 {
		err := domain.NewValidationError("keys", "no keys supplied")
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.keys.AddKeys(ctx, id, keys); err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	p, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("keys added", "productID", id, "added", len(keys))
	return p, nil
}

// ReconcileStock sets the product stock to the number of keys it owns.
func (s CatalogService) ReconcileStock(
	ctx context.Context, id int64,
) (domain.Product, error) {
	const op = "CatalogService.ReconcileStock"

	p, err := s.products.ReconcileStock(ctx, id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	slog.Info("stock reconciled", "op", op, "productID", id, "stock", p.Stock)
	return p, nil
}

// saveImages writes every non-nil upload into its slot of refs and returns
// the references it created.
func (s CatalogService) saveImages(
	ctx context.Context,
	uploads [domain.MaxProductImages]*domain.Upload,
	refs []string,
) ([]string, error) {
	var saved []string
	for i, up := range uploads {
		if up == nil {
			continue
		}
		ref, err := s.images.SaveImage(ctx, up.Filename, up.Content)
		if err != nil {
			s.deleteImages(ctx, saved)
			return nil, err
		}
		refs[i] = ref
		saved = append(saved, ref)
	}
	return saved, nil
}

func (s CatalogService) deleteImages(ctx context.Context, refs []string) {
	const op = "CatalogService.deleteImages"
	log := slog.With("op", op)

	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if err := s.images.DeleteImage(ctx, ref); err != nil {
			log.Warn("failed to delete image", "ref", ref, "err", err)
		}
	}
}
