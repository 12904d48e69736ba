package httphandler

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/niksmo/keyshop/internal/core/domain"
	"github.com/niksmo/keyshop/internal/core/port"
	"github.com/tealeg/xlsx"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type adminHandler struct {
	catalog     port.CatalogService
	checkout    port.CheckoutService
	mediaPrefix string
}

func registerAdmin(r gin.IRouter, s Services, mediaPrefix string) {
	h := adminHandler{s.Catalog, s.Checkout, mediaPrefix}
	r.GET("/products", h.products)
	r.GET("/products/export", h.export)
	r.POST("/products", h.create)
	r.PUT("/products/:id", h.update)
	r.DELETE("/products/:id", h.delete)
	r.POST("/products/:id/keys", h.addKeys)
	r.POST("/products/:id/reconcile", h.reconcile)
	r.GET("/purchases/:id/delivery", h.delivery)
}

func (h adminHandler) products(c *gin.Context) {
	const op = "adminHandler.products"

	ps, err := h.catalog.Products(c.Request.Context())
	if err != nil {
		writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, toProducts(ps, h.mediaPrefix))
}

// POST /admin/products takes a multipart form: name, price, stock,
// description, files image_1..image_3 and a keys file with one key per line.
func (h adminHandler) create(c *gin.Context) {
	const op = "adminHandler.create"

	in, closeFiles, err := productForm(c)
	if err != nil {
		writeError(c, op, err)
		return
	}
	defer closeFiles()

	p, err := h.catalog.CreateProduct(c.Request.Context(), in)
	if err != nil {
		writeError(c, op, err)
		return
	}
	c.JSON(http.StatusCreated, toProduct(p, h.mediaPrefix))
}

// PUT /admin/products/:id replaces the fields and only the uploaded images.
// Uploaded keys are appended.
func (h adminHandler) update(c *gin.Context) {
	const op = "adminHandler.update"

	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, op, err)
		return
	}

	in, closeFiles, err := productForm(c)
	if err != nil {
		writeError(c, op, err)
		return
	}
	defer closeFiles()

	p, err := h.catalog.UpdateProduct(c.Request.Context(), id, in)
	if err != nil {
		writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, toProduct(p, h.mediaPrefix))
}

func (h adminHandler) delete(c *gin.Context) {
	const op = "adminHandler.delete"

	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, op, err)
		return
	}

	if err := h.catalog.DeleteProduct(c.Request.Context(), id); err != nil {
		writeError(c, op, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h adminHandler) addKeys(c *gin.Context) {
	const op = "adminHandler.addKeys"

	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, op, err)
		return
	}

	keys, err := keysFile(c)
	if err != nil {
		writeError(c, op, err)
		return
	}

	p, err := h.catalog.AddKeys(c.Request.Context(), id, keys)
	if err != nil {
		writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, toProduct(p, h.mediaPrefix))
}

func (h adminHandler) reconcile(c *gin.Context) {
	const op = "adminHandler.reconcile"

	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, op, err)
		return
	}

	p, err := h.catalog.ReconcileStock(c.Request.Context(), id)
	if err != nil {
		writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, toProduct(p, h.mediaPrefix))
}

func (h adminHandler) delivery(c *gin.Context) {
	const op = "adminHandler.delivery"

	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, op, err)
		return
	}

	d, err := h.checkout.Delivery(c.Request.Context(), id)
	if err != nil {
		writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, toDelivery(d))
}

// GET /admin/products/export downloads the catalog as a spreadsheet.
func (h adminHandler) export(c *gin.Context) {
	const op = "adminHandler.export"

	ps, err := h.catalog.Products(c.Request.Context())
	if err != nil {
		writeError(c, op, err)
		return
	}

	file, err := productsSheet(ps)
	if err != nil {
		writeError(c, op, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=products.xlsx")
	c.Header("Content-Type", xlsxContentType)
	c.Status(http.StatusOK)
	if err := file.Write(c.Writer); err != nil {
		slog.Error("failed to write spreadsheet", "op", op, "err", err)
	}
}

func productsSheet(ps []domain.Product) (*xlsx.File, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Products")
	if err != nil {
		return nil, fmt.Errorf("failed to add sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, title := range []string{
		"ID", "Name", "Price", "Stock", "Available keys", "Description", "Images",
	} {
		header.AddCell().SetString(title)
	}

	for _, p := range ps {
		row := sheet.AddRow()
		row.AddCell().SetInt64(p.ID)
		row.AddCell().SetString(p.Name)
		row.AddCell().SetInt64(p.Price)
		row.AddCell().SetInt(p.Stock)
		row.AddCell().SetInt(p.AvailableKeys)
		row.AddCell().SetString(p.Description)
		row.AddCell().SetString(strings.Join(nonEmpty(p.Images), ","))
	}
	return file, nil
}

func nonEmpty(ss []string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// productForm reads the product multipart form. The returned func closes
// the opened uploads.
func productForm(c *gin.Context) (domain.ProductInput, func(), error) {
	var files []multipart.File
	closeFiles := func() {
		for _, f := range files {
			if err := f.Close(); err != nil {
				slog.Warn("failed to close upload", "err", err)
			}
		}
	}

	price, err := strconv.ParseInt(strings.TrimSpace(c.PostForm("price")), 10, 64)
	if err != nil {
		return domain.ProductInput{}, closeFiles,
			domain.NewValidationError("price", "must be an integer")
	}
	stock, err := strconv.Atoi(strings.TrimSpace(c.PostForm("stock")))
	if err != nil {
		return domain.ProductInput{}, closeFiles,
			domain.NewValidationError("stock", "must be an integer")
	}

	in := domain.ProductInput{
		Name:        strings.TrimSpace(c.PostForm("name")),
		Price:       price,
		Stock:       stock,
		Description: c.PostForm("description"),
	}

	for i := range domain.MaxProductImages {
		fh, err := c.FormFile(fmt.Sprintf("image_%d", i+1))
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			closeFiles()
			return domain.ProductInput{}, func() {}, badRequest(err)
		}

		f, err := fh.Open()
		if err != nil {
			closeFiles()
			return domain.ProductInput{}, func() {}, err
		}
		files = append(files, f)
		in.Images[i] = &domain.Upload{Filename: fh.Filename, Content: f}
	}

	keys, err := keysFile(c)
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		closeFiles()
		return domain.ProductInput{}, func() {}, err
	}
	in.Keys = keys

	return in, closeFiles, nil
}

// keysFile parses the uploaded "keys" file.
func keysFile(c *gin.Context) ([]string, error) {
	fh, err := c.FormFile("keys")
	if err != nil {
		return nil, badRequest(err)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	return domain.ParseKeys(f)
}

func badRequest(err error) error {
	return fmt.Errorf("%w: %w", errBadRequest, err)
}
