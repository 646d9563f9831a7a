// Package client contains the client-side building blocks that talk to the
// outside world.
//
// # Overview
//
//  1. A transport contract (Client, Collection) for the fleetcheck REST
//     backend: Register/Login, Ping, photo upload URLs, and per-collection
//     List/Create/Update.
//  2. HTTPClient, the net/http implementation. A RoundTripper injects the
//     bearer token, transparently refreshes an expired one and maps HTTP
//     status codes to sentinel errors.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations,
//     NewRepositories) wiring an SQLite database with embedded goose
//     migrations.
//
// # Error Handling
//
// Callers match failures with errors.Is: ErrUnavailable for transport and
// 5xx errors, ErrUnauthorized, ErrNotFound, ErrConflict, ErrBadRequest and
// ErrDecode for responses that could not be parsed.
package client
