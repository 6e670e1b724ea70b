// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime control of a reactor: prometheus metrics fed by the dispatch
// loop, debug probes over reactor snapshots, and a hot-reloadable
// configuration store driving the dispatch policy.
package control
