package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianAnswers/tokenstore"
)

// mockStore is an in-memory tokenstore.Store for middleware tests.
type mockStore struct {
	mu        sync.Mutex
	tokens    map[string]tokenstore.AccessToken
	lookupErr error
	putErr    error
	puts      []tokenstore.AccessToken
	putCh     chan struct{}
}

func newMockStore() *mockStore {
	return &mockStore{
		tokens: make(map[string]tokenstore.AccessToken),
		putCh:  make(chan struct{}, 8),
	}
}

func (m *mockStore) Lookup(ctx context.Context, token string) (*tokenstore.AccessToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	rec, ok := m.tokens[token]
	if !ok {
		return nil, tokenstore.ErrTokenNotFound
	}
	return &rec, nil
}

func (m *mockStore) Put(ctx context.Context, rec *tokenstore.AccessToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts = append(m.puts, *rec)
	select {
	case m.putCh <- struct{}{}:
	default:
	}
	if m.putErr != nil {
		return m.putErr
	}
	m.tokens[rec.Token] = *rec
	return nil
}

func (m *mockStore) List(ctx context.Context) ([]*tokenstore.AccessToken, error) {
	return nil, nil
}

func (m *mockStore) Delete(ctx context.Context, token string) error {
	return nil
}

func (m *mockStore) putCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.puts)
}

func (m *mockStore) waitForPut(t *testing.T) tokenstore.AccessToken {
	t.Helper()
	select {
	case <-m.putCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for counter write")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts[len(m.puts)-1]
}

func newAuthRouter(store tokenstore.Store, onRequest func(c *gin.Context)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ask", TokenAuth(store), func(c *gin.Context) {
		if onRequest != nil {
			onRequest(c)
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func doRequest(router *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ask", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestTokenAuth_MissingHeaderRejected(t *testing.T) {
	store := newMockStore()
	router := newAuthRouter(store, nil)

	w := doRequest(router, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error": "Unauthorized"}`, w.Body.String())
	assert.Zero(t, store.putCount())
}

func TestTokenAuth_MalformedHeaderRejected(t *testing.T) {
	store := newMockStore()
	router := newAuthRouter(store, nil)

	for _, header := range []string{"abc123", "Basic abc123", "Bearer"} {
		w := doRequest(router, header)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
		assert.JSONEq(t, `{"error": "Unauthorized"}`, w.Body.String())
	}
	assert.Zero(t, store.putCount())
}

func TestTokenAuth_UnknownTokenRejected(t *testing.T) {
	store := newMockStore()
	router := newAuthRouter(store, nil)

	w := doRequest(router, "Bearer no-such-token")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error": "Unauthorized"}`, w.Body.String())
	assert.Zero(t, store.putCount())
}

func TestTokenAuth_StoreErrorRejected(t *testing.T) {
	store := newMockStore()
	store.lookupErr = errors.New("disk on fire")
	router := newAuthRouter(store, nil)

	w := doRequest(router, "Bearer abc123")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error": "Unauthorized"}`, w.Body.String())
	assert.Zero(t, store.putCount())
}

func TestTokenAuth_ValidTokenPassesWithSnapshot(t *testing.T) {
	store := newMockStore()
	store.tokens["abc123"] = tokenstore.AccessToken{
		Token: "abc123", UserID: "user-1", APICallCount: 41,
	}

	var seen *AuthInfo
	router := newAuthRouter(store, func(c *gin.Context) {
		seen = GetAuthInfo(c)
	})

	w := doRequest(router, "Bearer abc123")

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "user-1", seen.UserID)
	// Handler sees the count as it was before this request.
	assert.Equal(t, int64(41), seen.APICallCount)

	written := store.waitForPut(t)
	assert.Equal(t, int64(42), written.APICallCount)
	assert.Equal(t, "user-1", written.UserID)
}

func TestTokenAuth_BearerPrefixCaseInsensitive(t *testing.T) {
	store := newMockStore()
	store.tokens["abc123"] = tokenstore.AccessToken{
		Token: "abc123", UserID: "user-1",
	}
	router := newAuthRouter(store, nil)

	w := doRequest(router, "bearer abc123")

	assert.Equal(t, http.StatusOK, w.Code)
	store.waitForPut(t)
}

func TestTokenAuth_CounterWriteFailureDoesNotFailRequest(t *testing.T) {
	store := newMockStore()
	store.tokens["abc123"] = tokenstore.AccessToken{
		Token: "abc123", UserID: "user-1", APICallCount: 7,
	}
	store.putErr = errors.New("write failed")
	router := newAuthRouter(store, nil)

	w := doRequest(router, "Bearer abc123")

	assert.Equal(t, http.StatusOK, w.Code)
	store.waitForPut(t)
}

func TestGetAuthInfo_MissingReturnsNil(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, GetAuthInfo(c))
}
