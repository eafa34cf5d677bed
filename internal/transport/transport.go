// Package transport carries logical backend requests over one of two channels:
// a direct HTTP connection holding the cookie session, or a message relay to a
// background host that performs the HTTP call on the caller's behalf.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Kind identifies a channel implementation.
type Kind string

// Channel kinds.
const (
	KindDirect  Kind = "direct"
	KindRelayed Kind = "relayed"
)

// Channel delivers a request to the backend and returns the raw response.
// A non-2xx answer is returned as *StatusError; anything that prevented an answer
// (unreachable host, timeout, broken relay) is a connectivity error.
type Channel interface {
	Send(ctx context.Context, req *Request) (*Response, error)
	Kind() Kind
}

// LoginPager is implemented by channels that can report the backend's login page.
type LoginPager interface {
	LoginPage(ctx context.Context) (string, error)
}

// Request is a logical backend call.
type Request struct {
	// Operation labels the call for logs and metrics.
	Operation string
	Method    string
	// Path is the backend path, starting with "/".
	Path string
	Body json.RawMessage
	// Base overrides the channel's configured origin.
	Base string
}

// Response is a 2xx backend answer.
type Response struct {
	Status int
	Body   []byte
}

// StatusError is a backend answer outside the 2xx range.
type StatusError struct {
	HTTPStatus int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d", e.HTTPStatus)
}

// NewRequest builds a request, marshaling body when it is not already raw JSON.
func NewRequest(operation, method, path string, body any) (*Request, error) {
	req := &Request{Operation: operation, Method: method, Path: path}
	if body == nil {
		return req, nil
	}
	if raw, ok := body.(json.RawMessage); ok {
		req.Body = raw
		return req, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding %s body: %w", operation, err)
	}
	req.Body = data
	return req, nil
}

// joinURL joins an origin and a path with exactly one slash.
func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func isSuccess(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}
