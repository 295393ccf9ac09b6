// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the answers service.
//
// # Authentication Flow
//
// The auth middleware extracts a bearer token from the Authorization
// header, looks it up in the token store, and stores the resulting
// AuthInfo in the Gin context for downstream handlers.
//
//	Request
//	   │
//	   ▼
//	TokenAuth
//	   │
//	   ├─► Extract token from "Authorization: Bearer <token>"
//	   │
//	   ├─► store.Lookup(ctx, token)
//	   │
//	   ├─► Store AuthInfo (pre-increment call count) in context
//	   │
//	   └─► Increment usage counter asynchronously
//	           │
//	           ▼
//	       Handler (retrieves via GetAuthInfo)
//
// # Usage Accounting
//
// The AuthInfo exposed to handlers carries the API call count as it was
// BEFORE this request. The increment is written back on a goroutine and
// its failure never affects the request. Two requests racing on the same
// token may each read N and both write N+1; the counter is advisory, not
// transactional.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianAnswers/observability"
	"github.com/AleutianAI/AleutianAnswers/tokenstore"
)

// =============================================================================
// Context Keys
// =============================================================================

// authInfoKey is the context key for storing AuthInfo.
// Using a dedicated key prevents collisions with other context values.
const authInfoKey = "aleutian_auth_info"

// =============================================================================
// Types
// =============================================================================

// AuthInfo holds the authenticated caller's identity for handlers.
//
// # Description
//
// APICallCount is a snapshot taken before this request was counted, so
// a handler inspecting it sees the caller's usage up to but excluding
// the request it is serving.
type AuthInfo struct {
	// UserID identifies the token's owner.
	UserID string

	// APICallCount is the number of calls recorded before this request.
	APICallCount int64
}

// =============================================================================
// Context Helpers
// =============================================================================

// SetAuthInfo stores the authenticated user info in the Gin context.
//
// # Description
//
// Called by TokenAuth after a successful token lookup. The stored
// AuthInfo can be retrieved by handlers via GetAuthInfo.
//
// # Inputs
//
//   - c: Gin context. Must not be nil.
//   - info: Authenticated user information. May be nil.
//
// # Thread Safety
//
// Safe to call concurrently (Gin context is request-scoped).
func SetAuthInfo(c *gin.Context, info *AuthInfo) {
	c.Set(authInfoKey, info)
}

// GetAuthInfo retrieves the authenticated user info from the Gin context.
//
// # Description
//
// Called by handlers to access the authenticated caller's identity.
// Returns nil if no AuthInfo is present (request not authenticated).
//
// # Inputs
//
//   - c: Gin context. Must not be nil.
//
// # Outputs
//
//   - *AuthInfo: Caller info, or nil if not authenticated.
//
// # Thread Safety
//
// Safe to call concurrently (Gin context is request-scoped).
func GetAuthInfo(c *gin.Context) *AuthInfo {
	if info, exists := c.Get(authInfoKey); exists {
		if authInfo, ok := info.(*AuthInfo); ok {
			return authInfo
		}
	}
	return nil
}

// =============================================================================
// Auth Middleware
// =============================================================================

// TokenAuth creates a Gin middleware that authenticates bearer tokens.
//
// # Description
//
// Extracts the bearer token from the Authorization header and looks it
// up in the token store. A missing header, a malformed header, an
// unknown token, or a store error all abort the request with 401 and
// body {"error": "Unauthorized"}; nothing is written to the store on
// the rejection path.
//
// On success the middleware stores AuthInfo in the context with the
// pre-increment call count, then increments the stored count on a
// goroutine. The write is best effort: a failure is logged and counted
// in metrics but the request proceeds regardless.
//
// # Inputs
//
//   - store: Token store for lookups and counter writes. Must not be nil.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware function ready for use with Gin.
//
// # Examples
//
//	router.GET("/ask", middleware.TokenAuth(store), handlers.Ask(pipeline))
//
// # Limitations
//
//   - Only supports Bearer token authentication.
//   - Does not cache lookups (hits the store every request).
//   - The counter increment is last-write-wins under concurrency.
//
// # Assumptions
//
//   - store.Lookup and store.Put are safe for concurrent calls.
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func TokenAuth(store tokenstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized",
			})
			return
		}

		record, err := store.Lookup(c.Request.Context(), token)
		if err != nil {
			// Unknown token and store failure look the same to the
			// caller; only the log distinguishes them.
			if !errors.Is(err, tokenstore.ErrTokenNotFound) {
				slog.Error("token lookup failed", "error", err)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized",
			})
			return
		}

		SetAuthInfo(c, &AuthInfo{
			UserID:       record.UserID,
			APICallCount: record.APICallCount,
		})

		// Count the request without holding it up. The request context
		// dies when the handler returns, so the write gets its own.
		updated := *record
		updated.APICallCount++
		go func(rec tokenstore.AccessToken) {
			if err := store.Put(context.Background(), &rec); err != nil {
				slog.Error("usage counter write failed",
					"user_id", rec.UserID, "error", err)
				recordUsageWrite(false)
				return
			}
			recordUsageWrite(true)
		}(updated)

		c.Next()
	}
}

// recordUsageWrite reports a usage write outcome when metrics are initialized.
func recordUsageWrite(success bool) {
	if observability.DefaultMetrics != nil {
		observability.DefaultMetrics.RecordUsageWrite(success)
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

// extractBearerToken extracts the token from the Authorization header.
//
// # Description
//
// Parses the Authorization header expecting format: "Bearer <token>"
// Returns empty string if the header is missing or malformed.
// The "Bearer" prefix is case-insensitive per RFC 7235.
//
// # Inputs
//
//   - c: Gin context. Must not be nil.
//
// # Outputs
//
//   - string: The extracted token, or empty string if not found.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	// Expected format: "Bearer <token>"
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
