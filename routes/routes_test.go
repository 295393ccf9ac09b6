package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianAnswers/chain"
	"github.com/AleutianAI/AleutianAnswers/datatypes"
	"github.com/AleutianAI/AleutianAnswers/services"
	"github.com/AleutianAI/AleutianAnswers/tokenstore"
)

type noopRetriever struct{}

func (noopRetriever) Retrieve(ctx context.Context, question string) ([]datatypes.RetrievedPassage, error) {
	return nil, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := tokenstore.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Put(context.Background(),
		&tokenstore.AccessToken{Token: "valid-token", UserID: "user-1"}))

	gen := func(ctx context.Context, prompt string) (string, error) {
		return `{"standalone_question": "q", "history_excerpt": ""}`, nil
	}
	answerGen := func(ctx context.Context, prompt string) (string, error) {
		return "Yes.", nil
	}
	pipeline := services.NewPipeline(func(ctx context.Context) (*services.Resources, error) {
		return &services.Resources{
			Condenser:   chain.NewCondenser(gen),
			Synthesizer: chain.NewSynthesizer(answerGen),
			Retriever:   noopRetriever{},
		}, nil
	})

	router := gin.New()
	SetupRoutes(router, pipeline, store, nil, nil)
	return router
}

func get(router *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRoutes_HealthIsUnauthenticated(t *testing.T) {
	router := newTestRouter(t)

	w := get(router, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "ok"}`, w.Body.String())
}

func TestRoutes_MetricsIsUnauthenticated(t *testing.T) {
	router := newTestRouter(t)

	w := get(router, "/metrics", "")

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutes_AskRequiresToken(t *testing.T) {
	router := newTestRouter(t)

	w := get(router, "/ask?question=hello", "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error": "Unauthorized"}`, w.Body.String())
}

func TestRoutes_AskWithValidToken(t *testing.T) {
	router := newTestRouter(t)

	w := get(router, "/ask?question=hello", "valid-token")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"answer": "Yes."}`, w.Body.String())
}

func TestRoutes_DocumentDeleteRequiresSource(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodDelete, "/v1/documents", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error": "Source query parameter is required"}`, w.Body.String())
}
