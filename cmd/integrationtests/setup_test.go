package integrationtests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/philippspitzley/auctioneer/internal/auth"
	bidding "github.com/philippspitzley/auctioneer/internal/biddingService"
	"github.com/philippspitzley/auctioneer/internal/marketplace"
	"github.com/philippspitzley/auctioneer/internal/notify"
	"github.com/philippspitzley/auctioneer/internal/repository"
	"github.com/philippspitzley/auctioneer/internal/server"
)

const (
	adminEmail    = "admin@auctioneer.local"
	adminPassword = "admin-password"
)

// testClock is a wall clock the tests move by hand
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// outbox records every delivered email
type outbox struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (o *outbox) Send(_ context.Context, msg notify.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) To(addr string) []notify.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []notify.Message
	for _, m := range o.sent {
		if m.To == addr {
			out = append(out, m)
		}
	}
	return out
}

type testEnv struct {
	router     *gin.Engine
	clock      *testClock
	mail       *outbox
	adminToken string
}

// SetupTestEnv wires the full application on the in-memory store
func SetupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := &testClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	mail := &outbox{}

	dispatcher, err := notify.NewDispatcher(mail, notify.DispatcherConfig{Workers: 2, QueueSize: 128, DedupeSize: 256})
	require.NoError(t, err)
	dispatcher.Start(context.Background())
	t.Cleanup(dispatcher.Stop)
	notifier := notify.NewNotifier(dispatcher, "http://auctioneer.test/auth/login")

	repo := repository.NewMemoryRepo()
	biddingSvc := bidding.NewBiddingService(repo, bidding.WithClock(clock.Now), bidding.WithNotifier(notifier))
	marketSvc := marketplace.NewMarketplaceService(repo, marketplace.WithClock(clock.Now), marketplace.WithRegistrar(notifier))

	_, _, err = marketSvc.EnsureAdmin(context.Background(), "admin", adminEmail, adminPassword)
	require.NoError(t, err)

	env := &testEnv{
		router: server.SetupRouter(server.Deps{
			Bidding:     biddingSvc,
			Marketplace: marketSvc,
			JWT:         auth.JWT{Secret: []byte("integration-secret"), TokenTTL: time.Hour},
		}),
		clock: clock,
		mail:  mail,
	}
	env.adminToken = env.Login(t, adminEmail, adminPassword)
	return env
}

// ExecuteRequestAndParse executes an HTTP request on the router and parses the envelope
func (e *testEnv) ExecuteRequestAndParse(t *testing.T, method, url, token string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()

	var reqBody []byte
	switch v := body.(type) {
	case nil:
	case string:
		reqBody = []byte(v)
	default:
		var err error
		reqBody, err = json.Marshal(v)
		require.NoError(t, err, "failed to marshal body")
	}

	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "failed to unmarshal response: %s", w.Body.String())
	}
	return resp, w
}

// Data returns the envelope's data object after checking the status
func (e *testEnv) Data(t *testing.T, wantStatus int, method, url, token string, body any) map[string]any {
	t.Helper()
	resp, w := e.ExecuteRequestAndParse(t, method, url, token, body)
	require.Equal(t, wantStatus, w.Code, w.Body.String())
	data, _ := resp["data"].(map[string]any)
	return data
}

func (e *testEnv) Login(t *testing.T, email, password string) string {
	t.Helper()
	data := e.Data(t, http.StatusOK, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	return data["token"].(string)
}

// Register signs up a user and returns its id and a bearer token
func (e *testEnv) Register(t *testing.T, username string) (string, string) {
	t.Helper()
	email := username + "@example.com"
	data := e.Data(t, http.StatusCreated, http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": "password-" + username,
	})
	return data["user_id"].(string), e.Login(t, email, "password-"+username)
}

// ListAuction creates a product and a setup auction owned by token's user
func (e *testEnv) ListAuction(t *testing.T, token string, auction map[string]any) string {
	t.Helper()
	product := e.Data(t, http.StatusCreated, http.MethodPost, "/products", token, map[string]string{"name": "Vintage Desk Lamp"})
	auction["product_id"] = product["product_id"]
	created := e.Data(t, http.StatusCreated, http.MethodPost, "/auctions", token, auction)
	return created["auction_id"].(string)
}
