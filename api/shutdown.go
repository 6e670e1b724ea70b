// File: api/shutdown.go
// Package api defines unified graceful shutdown contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// GracefulShutdown is a two-phase stop: Initiate stops intake and returns
// at once, Finalize waits for in-flight work within bounded timeouts and
// then forces termination.
type GracefulShutdown interface {
	Initiate() error
	Finalize() error
}
