// Package api wires HTTP routes to their handlers.
//
// Handlers translate requests into service calls and service results
// (or sentinel errors) back into JSON responses. All invariant-bearing
// logic lives in the service layer.
package api
