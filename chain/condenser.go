package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianAnswers/datatypes"
)

// =============================================================================
// Interfaces
// =============================================================================

// GenerateFunc is a function type for LLM text generation.
//
// # Description
//
// Using a function type instead of an interface allows callers to pass
// a simple closure, eliminating the need for adapter structs when the
// underlying LLM client has a different signature.
//
// # Inputs
//
//   - ctx: Context for cancellation and timeout.
//   - prompt: The prompt to send to the LLM.
//
// # Outputs
//
//   - string: The generated text.
//   - error: Non-nil if generation fails.
//
// # Example
//
//	generate := func(ctx context.Context, prompt string) (string, error) {
//	    return fastClient.Generate(ctx, prompt, cfg.Params())
//	}
//	condenser := NewCondenser(generate)
type GenerateFunc func(ctx context.Context, prompt string) (string, error)

// Condenser rewrites a follow-up question into a standalone question.
//
// # Description
//
// Condenser collapses a conversation history and a follow-up question
// into a single self-contained question suitable for retrieval, and
// extracts the slice of history relevant to it. The model is always
// consulted, even when the history is empty, so the follow-up is
// normalized (spelling, phrasing) by the same path on every request.
//
// # Thread Safety
//
// Condenser is safe for concurrent use.
//
// # Example
//
//	condenser := NewCondenser(generate)
//	sq, err := condenser.Condense(ctx, history, "what about pricing?")
type Condenser struct {
	generate GenerateFunc
}

// NewCondenser creates a Condenser backed by the given generate function.
func NewCondenser(generate GenerateFunc) *Condenser {
	return &Condenser{generate: generate}
}

// Condense rewrites the follow-up question using conversation history.
//
// # Description
//
// Builds the condense prompt from the history and follow-up, calls the
// LLM, and parses the JSON response into a StandaloneQuestion. If the
// model returns something that is not parseable JSON, the follow-up is
// used verbatim as the standalone question rather than failing the
// request.
//
// # Inputs
//
//   - ctx: Context for cancellation and timeout.
//   - history: Prior conversation turns, oldest first. May be empty.
//   - followUp: The sanitized follow-up question.
//
// # Outputs
//
//   - *datatypes.StandaloneQuestion: The rewritten question and history excerpt.
//   - error: Non-nil only if the LLM call itself fails.
//
// # Limitations
//
//   - The model decides what counts as "relevant" history.
//   - Latency is bounded by the fast model's response time.
//
// # Assumptions
//
//   - followUp has already been through datatypes.SanitizeQuestion.
func (c *Condenser) Condense(ctx context.Context, history []datatypes.ConversationTurn, followUp string) (*datatypes.StandaloneQuestion, error) {
	prompt := fmt.Sprintf(condensePromptTemplate, formatHistory(history), followUp)

	response, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("condense LLM call failed: %w", err)
	}

	sq, err := parseCondenseResponse(response)
	if err != nil {
		// The model ignored the format instruction. Fall back to the
		// follow-up verbatim so the request can still be answered.
		return &datatypes.StandaloneQuestion{Question: followUp}, nil
	}
	return sq, nil
}

// formatHistory renders conversation turns as alternating User/Assistant lines.
func formatHistory(history []datatypes.ConversationTurn) string {
	var b strings.Builder
	for _, turn := range history {
		b.WriteString(fmt.Sprintf("User: %s\nAssistant: %s\n", turn.Question, turn.Answer))
	}
	return b.String()
}

// parseCondenseResponse extracts the StandaloneQuestion from the LLM's
// JSON response. Models often wrap JSON in prose or code fences, so the
// outermost brace pair is located first and only that span is parsed.
func parseCondenseResponse(response string) (*datatypes.StandaloneQuestion, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("no valid JSON found in response")
	}

	var sq datatypes.StandaloneQuestion
	if err := json.Unmarshal([]byte(response[start:end+1]), &sq); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	if strings.TrimSpace(sq.Question) == "" {
		return nil, fmt.Errorf("empty standalone_question in response")
	}
	return &sq, nil
}
