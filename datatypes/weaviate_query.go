// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"fmt"

	"github.com/weaviate/weaviate/entities/models"
)

// ParseGraphQLResponse parses a Weaviate GraphQL response into the target type.
//
// # Description
//
// This generic function encapsulates the marshal/unmarshal pattern required to
// convert Weaviate's dynamic response (map[string]models.JSONObject) into a
// strongly-typed Go struct. The target type T must have json tags matching
// the expected response shape.
//
// # Limitations
//
//   - Type mismatches result in zero values, not errors.
//
// # Assumptions
//
//   - The response Data field is JSON-marshalable.
//   - The target type T has correct json tags.
func ParseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}

	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL response data: %w", err)
	}

	var result T
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into target type: %w", err)
	}

	return &result, nil
}

// DocumentQueryResponse represents the response from querying the Document class.
type DocumentQueryResponse struct {
	Get struct {
		Document []DocumentResult `json:"Document"`
	} `json:"Get"`
}

// DocumentResult represents a single document chunk from a query.
type DocumentResult struct {
	Content    string `json:"content"`
	Source     string `json:"source"`
	IngestedAt int64  `json:"ingested_at"`
	Additional struct {
		ID        string   `json:"id"`
		Distance  *float32 `json:"distance"`
		Certainty *float32 `json:"certainty"`
		Score     *string  `json:"score"`
	} `json:"_additional"`
}

// DocumentProperties represents the properties for creating a Document object.
type DocumentProperties struct {
	Content    string `json:"content"`
	Source     string `json:"source"`
	IngestedAt int64  `json:"ingested_at"`
}

// ToMap converts DocumentProperties to the map format required by the
// Weaviate client's WithProperties().
func (p *DocumentProperties) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"content":     p.Content,
		"source":      p.Source,
		"ingested_at": p.IngestedAt,
	}
}
