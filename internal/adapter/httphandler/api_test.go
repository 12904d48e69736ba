package httphandler_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiEnvelope[T any] struct {
	Response T `json:"response"`
}

type apiProduct struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
	Stock int    `json:"stock"`
}

type apiUser struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func TestAPI(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProduct(t, "P", 100, 3, "K1")

	web := env.client()
	web.register(t, "admin", "admin@example.com", "secret1")
	web.register(t, "bob", "bob@example.com", "secret2")

	api := env.client()

	issue := func(t *testing.T, email, password string) string {
		t.Helper()
		rec := api.do(t, http.MethodPost, "/api/v1/tokens", map[string]string{
			"email": email, "password": password,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		return decode[apiEnvelope[map[string]string]](t, rec).Response["token"]
	}

	t.Run("Products", func(t *testing.T) {
		rec := api.do(t, http.MethodGet, "/api/v1/products", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		ps := decode[apiEnvelope[[]apiProduct]](t, rec).Response
		assert.Equal(t, []apiProduct{{ID: p.ID, Name: "P", Price: 100, Stock: 3}}, ps)
	})

	t.Run("Product", func(t *testing.T) {
		rec := api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/products/%d", p.ID), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "P", decode[apiEnvelope[apiProduct]](t, rec).Response.Name)

		rec = api.do(t, http.MethodGet, "/api/v1/products/404", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Users", func(t *testing.T) {
		rec := api.do(t, http.MethodGet, "/api/v1/users", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "password")
		assert.NotContains(t, rec.Body.String(), "admin\":")

		us := decode[apiEnvelope[[]apiUser]](t, rec).Response
		require.Len(t, us, 2)
		assert.Equal(t, "bob@example.com", us[1].Email)
	})

	t.Run("InvalidCredentials", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/api/v1/tokens", map[string]string{
			"email": "admin@example.com", "password": "nope-nope",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("DeleteWithoutToken", func(t *testing.T) {
		rec := api.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/products/%d", p.ID), nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("DeleteWithUserToken", func(t *testing.T) {
		token := issue(t, "bob@example.com", "secret2")

		c := env.client()
		c.header.Set("Authorization", "Bearer "+token)
		rec := c.do(t, http.MethodDelete, "/api/v1/users/1", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("DeleteWithAdminToken", func(t *testing.T) {
		token := issue(t, "admin@example.com", "secret1")

		c := env.client()
		c.header.Set("Authorization", "Bearer "+token)

		rec := c.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/products/%d", p.ID), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":"OK"}`, rec.Body.String())

		rec = c.do(t, http.MethodDelete, "/api/v1/users/2", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = api.do(t, http.MethodGet, "/api/v1/users/2", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("GarbageToken", func(t *testing.T) {
		c := env.client()
		c.header.Set("Authorization", "Bearer garbage")
		rec := c.do(t, http.MethodDelete, "/api/v1/users/1", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("CORSPreflight", func(t *testing.T) {
		c := env.client()
		c.header.Set("Origin", "https://shop.example.org")
		c.header.Set("Access-Control-Request-Method", http.MethodGet)
		rec := c.do(t, http.MethodOptions, "/api/v1/products", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("CORSPreflightForWrite", func(t *testing.T) {
		c := env.client()
		c.header.Set("Origin", "https://shop.example.org")
		c.header.Set("Access-Control-Request-Method", http.MethodPost)
		c.header.Set("Access-Control-Request-Headers", "Content-Type")
		rec := c.do(t, http.MethodOptions, "/api/v1/tokens", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	})

	t.Run("SameOriginOptions", func(t *testing.T) {
		c := env.client()
		c.header.Set("Origin", "http://example.com")
		rec := c.do(t, http.MethodOptions, "/api/v1/products", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}
