// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Every operation that reads or replaces a session's index takes that
// session's lock from a shared SessionLocks, so ingestion, clearing and
// answering never observe a half-written index. Different sessions never
// contend.
//
// Services are pure Go with no CGO or external dependencies.
package services
