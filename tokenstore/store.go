// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tokenstore persists the access tokens the guard middleware
// authorizes against, together with their per-token usage counters.
//
// The store is a plain key-value contract so deployments can swap the
// embedded BadgerDB implementation for an external database without
// touching the middleware.
package tokenstore

import (
	"context"
	"errors"
)

// ErrTokenNotFound is returned by Lookup when no record exists for the
// presented token. The guard maps it (and every other lookup failure)
// to an Unauthorized response.
var ErrTokenNotFound = errors.New("token not found")

// AccessToken is one provisioned bearer token and its usage counter.
//
// APICallCount is incremented once per authorized request via a
// read-then-write from the middleware. Concurrent requests carrying the
// same token can lose increments (last write wins); that is the
// documented accounting policy, not a bug to paper over here.
type AccessToken struct {
	// Token is the opaque bearer value presented by callers. Never
	// logged in full.
	Token string `json:"token"`

	// UserID identifies the account the token was provisioned for.
	UserID string `json:"user_id"`

	// APICallCount is the number of authorized calls made with this
	// token. Monotonically non-decreasing.
	APICallCount int64 `json:"api_call_count"`
}

// Store is the authorization store consumed by the guard middleware and
// the tokenctl CLI.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Lookup returns the record for the given token, or ErrTokenNotFound.
	Lookup(ctx context.Context, token string) (*AccessToken, error)

	// Put writes the record, overwriting any existing record for the
	// same token. Used both for provisioning and for the usage-counter
	// write-back.
	Put(ctx context.Context, rec *AccessToken) error

	// List returns every provisioned token record.
	List(ctx context.Context) ([]*AccessToken, error)

	// Delete removes the record for the given token. Deleting a missing
	// token is not an error.
	Delete(ctx context.Context, token string) error
}
