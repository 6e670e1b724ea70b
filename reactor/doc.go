// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor is the dispatch engine. A Reactor aggregates event sources
// (api.SpecificSelector plug-ins), routes each ready event to the handler
// that registered for it and runs the handler inline or on a worker pool.
// Handlers never touch engine tables: they issue deferred commands that the
// single dispatch goroutine applies once the handler returned.
//
// The error and lock selectors are built in. Other sources live in
// reactor/selector and are plugged in with AddSelector; package facade
// assembles a complete engine.
package reactor
