// Package remote holds the JSON-over-HTTP plumbing shared by the assist and publish clients.
package remote

import (
	"fmt"
	"net/http"
)

// TransportError means the request never produced a response.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RejectionError means the remote answered with a non-2xx status or an unusable body.
type RejectionError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *RejectionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s rejected request: %d %s", e.Endpoint, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%s rejected request: %d %s", e.Endpoint, e.Status, e.Message)
}
