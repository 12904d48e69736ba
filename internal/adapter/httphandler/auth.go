package httphandler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/niksmo/keyshop/internal/core/port"
)

type authHandler struct {
	users    port.UserService
	sessions port.SessionService
	cookie   SessionCookie
}

func registerAuth(r gin.IRouter, s Services, cookie SessionCookie) {
	h := authHandler{s.Users, s.Sessions, cookie}
	r.POST("/auth/register", h.register)
	r.POST("/auth/login", h.login)
	r.POST("/auth/logout", h.logout)
}

func (h authHandler) register(c *gin.Context) {
	const op = "authHandler.register"

	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, op, err)
		return
	}

	u, err := h.users.Register(
		c.Request.Context(), req.Name, req.Email, req.Password,
	)
	if err != nil {
		writeError(c, op, err)
		return
	}
	c.JSON(http.StatusCreated, toUser(u))
}

// POST /auth/login binds the user to the current session, cart included.
func (h authHandler) login(c *gin.Context) {
	const op = "authHandler.login"
	ctx := c.Request.Context()

	var req credentialsRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, op, err)
		return
	}

	u, err := h.users.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		writeError(c, op, err)
		return
	}

	if err := h.sessions.Login(ctx, sessionID(c), u.ID); err != nil {
		writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, toUser(u))
}

func (h authHandler) logout(c *gin.Context) {
	const op = "authHandler.logout"

	if err := h.sessions.Logout(c.Request.Context(), sessionID(c)); err != nil {
		writeError(c, op, err)
		return
	}

	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
	c.Status(http.StatusNoContent)
}
