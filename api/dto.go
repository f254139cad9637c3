/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  The domain types already carry the wire-format JSON tags (they are the
  storage format too), so most responses serialize them directly. The
  types here are the API-only envelopes: errors, queue inspection, and
  connectivity toggling.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import "github.com/atlasgym/gym-engine/offline"

// ErrorDTO is the JSON error envelope.
type ErrorDTO struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// QueueDTO wraps the pending offline operations.
type QueueDTO struct {
	Depth      int                       `json:"depth"`
	Operations []offline.QueuedOperation `json:"operations"`
}

// ConnectivityDTO reports or sets the online state.
type ConnectivityDTO struct {
	Online bool `json:"online"`
}
