// Package common contains shared constants and sentinel errors used across
// artivault components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on inbound requests.
const AccessTokenHeaderName = "access_token"

// RequestIDHeaderName is the gRPC metadata key echoing the per-request id.
const RequestIDHeaderName = "x-request-id"

// DefaultPageSize is the number of objects returned by a single listing call.
const DefaultPageSize = 10
