package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianAnswers/chain"
	"github.com/AleutianAI/AleutianAnswers/datatypes"
)

// stubRetriever returns a fixed passage list.
type stubRetriever struct {
	passages []datatypes.RetrievedPassage
	err      error
	calls    atomic.Int64
}

func (s *stubRetriever) Retrieve(ctx context.Context, question string) ([]datatypes.RetrievedPassage, error) {
	s.calls.Add(1)
	return s.passages, s.err
}

func testResources(retriever *stubRetriever, answer string) *Resources {
	condense := func(ctx context.Context, prompt string) (string, error) {
		return `{"standalone_question": "standalone", "history_excerpt": ""}`, nil
	}
	synthesize := func(ctx context.Context, prompt string) (string, error) {
		return answer, nil
	}
	return &Resources{
		Condenser:   chain.NewCondenser(condense),
		Synthesizer: chain.NewSynthesizer(synthesize),
		Retriever:   retriever,
	}
}

func TestAnswer_RunsAllStages(t *testing.T) {
	retriever := &stubRetriever{
		passages: []datatypes.RetrievedPassage{{Content: "ctx", Source: "docs/a.md"}},
	}
	p := NewPipeline(func(ctx context.Context) (*Resources, error) {
		return testResources(retriever, "Yes, it does."), nil
	})

	result, err := p.Answer(context.Background(), "does it?", nil)

	require.NoError(t, err)
	assert.Equal(t, "Yes, it does.", result.Text)
	assert.False(t, result.IsUnknown)
	assert.Equal(t, int64(1), retriever.calls.Load())
}

func TestAnswer_UnknownSentinelSurfaces(t *testing.T) {
	retriever := &stubRetriever{}
	p := NewPipeline(func(ctx context.Context) (*Resources, error) {
		return testResources(retriever, "I don't know."), nil
	})

	result, err := p.Answer(context.Background(), "does it run on Mars?", nil)

	require.NoError(t, err)
	assert.True(t, result.IsUnknown)
}

func TestAnswer_RetrieverErrorPropagates(t *testing.T) {
	retriever := &stubRetriever{err: errors.New("weaviate down")}
	p := NewPipeline(func(ctx context.Context) (*Resources, error) {
		return testResources(retriever, "unused"), nil
	})

	result, err := p.Answer(context.Background(), "q", nil)

	require.Error(t, err)
	assert.Nil(t, result)
}

func TestAnswer_InitRunsOnceAcrossConcurrentCalls(t *testing.T) {
	var builds atomic.Int64
	retriever := &stubRetriever{}
	p := NewPipeline(func(ctx context.Context) (*Resources, error) {
		builds.Add(1)
		return testResources(retriever, "Yes."), nil
	})

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = p.Answer(context.Background(), "q", nil)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), builds.Load())
}

func TestAnswer_FailedInitIsRetried(t *testing.T) {
	var builds atomic.Int64
	retriever := &stubRetriever{}
	p := NewPipeline(func(ctx context.Context) (*Resources, error) {
		if builds.Add(1) == 1 {
			return nil, errors.New("vector store not ready")
		}
		return testResources(retriever, "Yes."), nil
	})

	_, err := p.Answer(context.Background(), "q", nil)
	require.Error(t, err)

	result, err := p.Answer(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, "Yes.", result.Text)
	assert.Equal(t, int64(2), builds.Load())
}

func TestAnswer_ResourcesMemoizedAfterSuccess(t *testing.T) {
	var builds atomic.Int64
	retriever := &stubRetriever{}
	p := NewPipeline(func(ctx context.Context) (*Resources, error) {
		builds.Add(1)
		return testResources(retriever, "Yes."), nil
	})

	for i := 0; i < 3; i++ {
		_, err := p.Answer(context.Background(), "q", nil)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), builds.Load())
}
