// Package server defines the wire envelope and utility helpers that are reused
// across client, hub and router logic.
package server

import (
	"encoding/json"
	"strings"
)

// Reply types sent back to the originating client.
const (
	TypeAck   = "ack"
	TypeError = "error"
)

// Error codes carried in an error reply.
const (
	CodeNotFound    = "not_found"
	CodeValidation  = "validation"
	CodeConflict    = "conflict"
	CodeUnknownType = "unknown_type"
	CodeInternal    = "internal"
)

// Envelope is the JSON frame a client sends. Ack is set when the client
// expects a direct reply.
type Envelope struct {
	Type    string          `json:"type"`
	Ack     *uint64         `json:"ack,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Outbound is the JSON frame the server sends: a broadcast, an ack or an
// error reply.
type Outbound struct {
	Type    string  `json:"type"`
	Ack     *uint64 `json:"ack,omitempty"`
	Payload any     `json:"payload"`
}

// ErrorPayload describes a failed request.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// inboundMessage is a decoded frame queued for the hub.
type inboundMessage struct {
	client   *Client
	envelope Envelope
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
