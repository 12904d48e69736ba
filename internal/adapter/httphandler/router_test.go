package httphandler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/niksmo/keyshop/internal/adapter/auth"
	"github.com/niksmo/keyshop/internal/adapter/httphandler"
	"github.com/niksmo/keyshop/internal/adapter/media"
	"github.com/niksmo/keyshop/internal/adapter/session"
	"github.com/niksmo/keyshop/internal/adapter/storage"
	"github.com/niksmo/keyshop/internal/core/domain"
	"github.com/niksmo/keyshop/internal/core/service"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const cookieName = "sid"

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, msg domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) Sent() []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Notification(nil), n.sent...)
}

type testEnv struct {
	router   *gin.Engine
	db       storage.SQLDB
	notifier *recordingNotifier
	fs       afero.Fs
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := storage.Open(t.Context(), storage.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, storage.Migrate(db, false))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	fs := afero.NewMemMapFs()
	images := media.NewImageStoreFs(fs)
	sessions := session.NewRedisStore(rdb, time.Hour)

	products := storage.NewProductsRepository(db)
	purchases := storage.NewPurchasesRepository(db)
	notifier := &recordingNotifier{}

	users := service.NewUserService(
		storage.NewUsersRepository(db),
		auth.NewBcryptHasher(bcrypt.MinCost),
		auth.NewJWTIssuer("test-secret", "keyshop", time.Hour),
	)

	s := httphandler.Services{
		Catalog: service.NewCatalogService(
			products, storage.NewKeysRepository(db), images, 0,
		),
		Cart: service.NewCartService(sessions, products),
		Checkout: service.NewCheckoutService(
			sessions, purchases, purchases, notifier, nil,
			service.CheckoutConfig{},
		),
		Users:    users,
		Reviews:  service.NewReviewService(storage.NewReviewsRepository(db)),
		Sessions: service.NewSessionService(sessions),
	}

	router := httphandler.NewRouter(s, httphandler.RouterConfig{
		Session:     httphandler.SessionCookie{Name: cookieName, TTL: time.Hour},
		MediaPrefix: "/images",
		Media:       images.FileSystem(),
		Health:      db.PingContext,
	})

	return &testEnv{router: router, db: db, notifier: notifier, fs: fs}
}

func (e *testEnv) createProduct(
	t *testing.T, name string, price int64, stock int, keys ...string,
) domain.Product {
	t.Helper()

	p, err := storage.NewProductsRepository(e.db).CreateProduct(
		t.Context(),
		domain.Product{Name: name, Price: price, Stock: stock},
		keys,
	)
	require.NoError(t, err)
	return p
}

// A client keeps its own session cookie across requests.
type client struct {
	env    *testEnv
	cookie *http.Cookie
	header http.Header
}

func (e *testEnv) client() *client {
	return &client{env: e, header: http.Header{}}
}

func (c *client) send(req *http.Request) *httptest.ResponseRecorder {
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	rec := httptest.NewRecorder()
	c.env.router.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.Name != cookieName {
			continue
		}
		if ck.MaxAge < 0 {
			c.cookie = nil
			continue
		}
		c.cookie = &http.Cookie{Name: ck.Name, Value: ck.Value}
	}
	return rec
}

func (c *client) do(
	t *testing.T, method, path string, body any,
) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req)
}

type formFile struct {
	field, name string
	content     []byte
}

func (c *client) multipart(
	t *testing.T, method, path string, fields map[string]string, files ...formFile,
) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.send(req)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// loginAdmin registers the first account, which becomes the admin, and
// logs the client in.
func (c *client) loginAdmin(t *testing.T) {
	t.Helper()
	c.register(t, "admin", "admin@example.com", "secret1")
	c.login(t, "admin@example.com", "secret1")
}

func (c *client) register(t *testing.T, name, email, password string) {
	t.Helper()
	rec := c.do(t, http.MethodPost, "/auth/register", map[string]string{
		"name": name, "email": email, "password": password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (c *client) login(t *testing.T, email, password string) {
	t.Helper()
	rec := c.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
