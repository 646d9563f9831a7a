// Package cli provides the interactive fleetcheck terminal client.
//
// The REPL works on the local database at all times. Vehicles, checklists
// and inspections created here are stored as pending and pushed by the sync
// manager once a session exists and the server is reachable. A background
// watcher pings the server and asks for a sync when connectivity returns.
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
package cli
