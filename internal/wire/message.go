// Package wire defines the tagged-union message envelope exchanged between
// the relay server and a connected tunnel agent over the WebSocket
// connection established at /connect.
package wire

import (
	"encoding/json"
	"fmt"
)

// Kind identifies which RelayMessage variant a frame carries.
type Kind string

const (
	KindClientID      Kind = "ClientId"
	KindWebhook       Kind = "Webhook"
	KindProxyRequest  Kind = "ProxyRequest"
	KindProxyResponse Kind = "ProxyResponse"
)

// Message is the tagged sum of every frame that can cross the tunnel in
// either direction. Exactly one of the payload fields is populated,
// selected by Kind; json.Marshal/Unmarshal only ever touch the fields
// relevant to that Kind.
//
// A single struct with an explicit Kind discriminator is this package's
// choice of "language-native sum representation" (a Go interface type
// plus per-variant structs was the alternative; the flat struct keeps
// round-tripping through encoding/json a single, boring Marshal call
// instead of a custom UnmarshalJSON per variant pair).
type Message struct {
	Kind Kind `json:"kind"`

	// ClientId payload.
	ClientID string `json:"client_id,omitempty"`

	// Webhook / ProxyRequest / ProxyResponse shared fields.
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body,omitempty"`

	// ProxyRequest / ProxyResponse correlation.
	RequestID string `json:"request_id,omitempty"`

	// ProxyRequest only.
	Path  *string `json:"path,omitempty"`
	Query *string `json:"query,omitempty"`

	// ProxyResponse only.
	Status uint16 `json:"status,omitempty"`
}

// NewClientID builds the first frame sent to an agent after a successful
// /connect upgrade.
func NewClientID(id string) Message {
	return Message{Kind: KindClientID, ClientID: id}
}

// NewWebhook builds a fire-and-forget delivery frame.
func NewWebhook(method string, headers map[string]string, body []byte) Message {
	return Message{Kind: KindWebhook, Method: method, Headers: headers, Body: body}
}

// NewProxyRequest builds a request/response frame addressed to one
// pending request id. path and query are nil when absent, per spec: an
// empty query string is encoded as absent, not as "".
func NewProxyRequest(requestID, method string, headers map[string]string, body []byte, path, query *string) Message {
	return Message{
		Kind:      KindProxyRequest,
		RequestID: requestID,
		Method:    method,
		Headers:   headers,
		Body:      body,
		Path:      path,
		Query:     query,
	}
}

// NewProxyResponse builds the agent's reply to a ProxyRequest.
func NewProxyResponse(requestID string, status uint16, headers map[string]string, body []byte) Message {
	return Message{
		Kind:      KindProxyResponse,
		RequestID: requestID,
		Status:    status,
		Headers:   headers,
		Body:      body,
	}
}

// Encode serialises the message to its wire form (JSON text frame).
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a wire frame into a Message. An unknown Kind is not an
// error here — callers are expected to log and ignore it.
func Decode(raw []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, fmt.Errorf("decoding relay message: %w", err)
	}
	return m, nil
}

// Known reports whether Kind is one of the four defined variants.
func (m Message) Known() bool {
	switch m.Kind {
	case KindClientID, KindWebhook, KindProxyRequest, KindProxyResponse:
		return true
	default:
		return false
	}
}
