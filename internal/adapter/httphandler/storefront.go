package httphandler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/niksmo/keyshop/internal/core/domain"
	"github.com/niksmo/keyshop/internal/core/port"
)

type storefrontHandler struct {
	catalog     port.CatalogService
	mediaPrefix string
}

func registerStorefront(r gin.IRouter, s Services, mediaPrefix string) {
	h := storefrontHandler{s.Catalog, mediaPrefix}
	r.GET("/catalog", h.catalogPage)
	r.GET("/featured", h.featured)
	r.GET("/products/:id", h.product)
	r.GET("/search", h.search)
}

// GET /catalog lists products in stock.
func (h storefrontHandler) catalogPage(c *gin.Context) {
	const op = "storefrontHandler.catalogPage"

	ps, err := h.catalog.InStock(c.Request.Context())
	if err != nil {
		writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, toProducts(ps, h.mediaPrefix))
}

func (h storefrontHandler) featured(c *gin.Context) {
	const op = "storefrontHandler.featured"

	ps, err := h.catalog.Featured(c.Request.Context())
	if err != nil {
		writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, toProducts(ps, h.mediaPrefix))
}

func (h storefrontHandler) product(c *gin.Context) {
	const op = "storefrontHandler.product"

	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, op, err)
		return
	}

	p, err := h.catalog.Product(c.Request.Context(), id)
	if err != nil {
		writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, toProduct(p, h.mediaPrefix))
}

// GET /search?q= matches product names.
func (h storefrontHandler) search(c *gin.Context) {
	const op = "storefrontHandler.search"

	ps, err := h.catalog.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, toProducts(ps, h.mediaPrefix))
}

type reviewsHandler struct {
	reviews  port.ReviewService
	sessions port.SessionService
	users    port.UserService
}

func registerReviews(r gin.IRouter, s Services, requireAdmin gin.HandlerFunc) {
	h := reviewsHandler{s.Reviews, s.Sessions, s.Users}
	r.GET("/reviews", h.list)
	r.POST("/reviews", h.add)
	r.DELETE("/reviews/:id", requireAdmin, h.delete)
}

func (h reviewsHandler) list(c *gin.Context) {
	const op = "reviewsHandler.list"

	rs, err := h.reviews.Reviews(c.Request.Context())
	if err != nil {
		writeError(c, op, err)
		return
	}

	out := make([]Review, len(rs))
	for i, r := range rs {
		out[i] = toReview(r)
	}
	c.JSON(http.StatusOK, out)
}

// POST /reviews signs the review with the logged in user's name unless the
// body names an author.
func (h reviewsHandler) add(c *gin.Context) {
	const op = "reviewsHandler.add"
	ctx := c.Request.Context()

	var req reviewRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, op, err)
		return
	}

	if req.Username == "" {
		name, err := h.currentUserName(c)
		if err != nil {
			writeError(c, op, err)
			return
		}
		req.Username = name
	}

	r, err := h.reviews.AddReview(ctx, req.Username, req.Text)
	if err != nil {
		writeError(c, op, err)
		return
	}
	c.JSON(http.StatusCreated, toReview(r))
}

func (h reviewsHandler) currentUserName(c *gin.Context) (string, error) {
	ctx := c.Request.Context()

	sess, err := h.sessions.Session(ctx, sessionID(c))
	if err != nil {
		return "", err
	}
	if !sess.Authenticated() {
		return "", nil
	}

	u, err := h.users.User(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return u.Name, nil
}

func (h reviewsHandler) delete(c *gin.Context) {
	const op = "reviewsHandler.delete"

	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, op, err)
		return
	}

	if err := h.reviews.DeleteReview(c.Request.Context(), id); err != nil {
		writeError(c, op, err)
		return
	}
	c.Status(http.StatusNoContent)
}
