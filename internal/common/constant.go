// Package common contains shared constants and sentinel errors used across
// fleetcheck components.
package common

const (
	// AuthorizationHeaderName carries the bearer access token on REST requests.
	AuthorizationHeaderName = "Authorization"

	// BearerPrefix precedes the access token in the Authorization header.
	BearerPrefix = "Bearer "

	// APIPrefix is the path prefix of every versioned REST endpoint.
	APIPrefix = "/api/v1"

	// ChangesSubject is the NATS subject root for record change notifications.
	// Concrete subjects are ChangesSubject + "." + collection.
	ChangesSubject = "fleetcheck.changes"
)
