package chain

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianAnswers/datatypes"
)

func TestCondense_ParsesJSONResponse(t *testing.T) {
	gen := func(ctx context.Context, prompt string) (string, error) {
		return `{"standalone_question": "What is the pricing for the enterprise plan?", "history_excerpt": "User asked about plans."}`, nil
	}
	c := NewCondenser(gen)

	history := []datatypes.ConversationTurn{
		{Question: "What plans do you offer?", Answer: "We offer starter and enterprise plans."},
	}
	sq, err := c.Condense(context.Background(), history, "what about pricing?")

	require.NoError(t, err)
	assert.Equal(t, "What is the pricing for the enterprise plan?", sq.Question)
	assert.Equal(t, "User asked about plans.", sq.HistoryExcerpt)
}

func TestCondense_ExtractsJSONFromProse(t *testing.T) {
	gen := func(ctx context.Context, prompt string) (string, error) {
		return "Sure! Here is the result:\n```json\n{\"standalone_question\": \"Does the product support SSO?\", \"history_excerpt\": \"\"}\n```", nil
	}
	c := NewCondenser(gen)

	sq, err := c.Condense(context.Background(), nil, "does it support SSO?")

	require.NoError(t, err)
	assert.Equal(t, "Does the product support SSO?", sq.Question)
}

func TestCondense_FallsBackOnUnparseableResponse(t *testing.T) {
	gen := func(ctx context.Context, prompt string) (string, error) {
		return "I cannot format this as JSON, sorry.", nil
	}
	c := NewCondenser(gen)

	sq, err := c.Condense(context.Background(), nil, "does it support SSO?")

	require.NoError(t, err)
	assert.Equal(t, "does it support SSO?", sq.Question)
	assert.Empty(t, sq.HistoryExcerpt)
}

func TestCondense_FallsBackOnEmptyStandaloneQuestion(t *testing.T) {
	gen := func(ctx context.Context, prompt string) (string, error) {
		return `{"standalone_question": "  ", "history_excerpt": "stuff"}`, nil
	}
	c := NewCondenser(gen)

	sq, err := c.Condense(context.Background(), nil, "original question")

	require.NoError(t, err)
	assert.Equal(t, "original question", sq.Question)
}

func TestCondense_PropagatesGenerationError(t *testing.T) {
	gen := func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("model unavailable")
	}
	c := NewCondenser(gen)

	sq, err := c.Condense(context.Background(), nil, "anything")

	require.Error(t, err)
	assert.Nil(t, sq)
	assert.Contains(t, err.Error(), "condense LLM call failed")
}

func TestCondense_AlwaysInvokesModelWithEmptyHistory(t *testing.T) {
	called := false
	gen := func(ctx context.Context, prompt string) (string, error) {
		called = true
		// Empty history renders as an empty Chat History section.
		assert.Contains(t, prompt, "Chat History:\n\n")
		return `{"standalone_question": "q", "history_excerpt": ""}`, nil
	}
	c := NewCondenser(gen)

	_, err := c.Condense(context.Background(), nil, "q")

	require.NoError(t, err)
	assert.True(t, called)
}

func TestCondense_PromptContainsHistoryAndFollowUp(t *testing.T) {
	var captured string
	gen := func(ctx context.Context, prompt string) (string, error) {
		captured = prompt
		return `{"standalone_question": "q", "history_excerpt": ""}`, nil
	}
	c := NewCondenser(gen)

	history := []datatypes.ConversationTurn{
		{Question: "first question", Answer: "first answer"},
		{Question: "second question", Answer: "second answer"},
	}
	_, err := c.Condense(context.Background(), history, "the follow up")

	require.NoError(t, err)
	assert.Contains(t, captured, "User: first question\nAssistant: first answer")
	assert.Contains(t, captured, "User: second question\nAssistant: second answer")
	assert.Contains(t, captured, "Follow Up Input: the follow up")
	assert.True(t, strings.Index(captured, "first question") < strings.Index(captured, "second question"))
}
