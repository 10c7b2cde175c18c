// Package server implements the HTTP and WebSocket transport of the
// planning-poker service.
//
// A Hub owns every connected Client and runs each inbound message through the
// Router on a single goroutine. The Router validates the payload, calls the
// matching poker handler and replies to the sender when the message carried
// an ack. Configuration, origin checks, routes and metrics live in their own
// files.
package server
