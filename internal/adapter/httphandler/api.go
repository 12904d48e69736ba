package httphandler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/niksmo/keyshop/internal/core/port"
)

type apiHandler struct {
	catalog port.CatalogService
	users   port.UserService
}

// registerAPI mounts the public JSON API. Deletes need an admin bearer
// token issued by POST /tokens.
func registerAPI(r gin.IRouter, s Services) {
	h := apiHandler{s.Catalog, s.Users}
	requireToken := RequireAdminToken(s.Users)

	r.POST("/tokens", h.issueToken)

	r.GET("/products", h.products)
	r.GET("/products/:id", h.product)
	r.DELETE("/products/:id", requireToken, h.deleteProduct)

	r.GET("/users", h.listUsers)
	r.GET("/users/:id", h.user)
	r.DELETE("/users/:id", requireToken, h.deleteUser)
}

func (h apiHandler) issueToken(c *gin.Context) {
	const op = "apiHandler.issueToken"

	var req credentialsRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, op, err)
		return
	}

	token, err := h.users.IssueToken(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, op, err)
		return
	}
	c.JSON(http.StatusCreated, envelope{gin.H{"token": token}})
}

func (h apiHandler) products(c *gin.Context) {
	const op = "apiHandler.products"

	ps, err := h.catalog.Products(c.Request.Context())
	if err != nil {
		writeError(c, op, err)
		return
	}

	out := make([]APIProduct, len(ps))
	for i, p := range ps {
		out[i] = toAPIProduct(p)
	}
	c.JSON(http.StatusOK, envelope{out})
}

func (h apiHandler) product(c *gin.Context) {
	const op = "apiHandler.product"

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
	c.JSON(http.StatusOK, envelope{toAPIProduct(p)})
}

func (h apiHandler) deleteProduct(c *gin.Context) {
	const op = "apiHandler.deleteProduct"

	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, op, err)
		return
	}

	if err := h.catalog.DeleteProduct(c.Request.Context(), id); err != nil {
		writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": "OK"})
}

func (h apiHandler) listUsers(c *gin.Context) {
	const op = "apiHandler.listUsers"

	us, err := h.users.Users(c.Request.Context())
	if err != nil {
		writeError(c, op, err)
		return
	}

	out := make([]User, len(us))
	for i, u := range us {
		out[i] = toUser(u)
		out[i].Admin = false
	}
	c.JSON(http.StatusOK, envelope{out})
}

func (h apiHandler) user(c *gin.Context) {
	const op = "apiHandler.user"

	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, op, err)
		return
	}

	u, err := h.users.User(c.Request.Context(), id)
	if err != nil {
		writeError(c, op, err)
		return
	}

	out := toUser(u)
	out.Admin = false
	c.JSON(http.StatusOK, envelope{out})
}

func (h apiHandler) deleteUser(c *gin.Context) {
	const op = "apiHandler.deleteUser"

	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, op, err)
		return
	}

	if err := h.users.DeleteUser(c.Request.Context(), id); err != nil {
		writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": "OK"})
}
