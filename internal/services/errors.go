package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// APIError is returned when the catalog answers with a non-200 status.
type APIError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("TMDB API returned status %d for %s: %s", e.StatusCode, e.Endpoint, e.Body)
}

// ErrorKind is the user-facing category of a failed catalog call.
type ErrorKind string

const (
	KindNoConnectivity ErrorKind = "no_connectivity"
	KindTimeout        ErrorKind = "timeout"
	KindServerError    ErrorKind = "server_error"
	KindClientError    ErrorKind = "client_error"
	KindUnknown        ErrorKind = "unknown"
)

// Failure is what controllers keep in state instead of the raw error.
type Failure struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Status  int       `json:"status,omitempty"`
}

const (
	msgNoConnection = "No internet connection. Please check your network and try again."
	msgTimeout      = "Connection timed out. Please try again."
	msgNetwork      = "Network error. Please check your connection and try again."
	msgServer       = "Server error. Please try again later."
	msgUnauthorized = "Not authorized to access the movie catalog."
	msgNotFound     = "The requested movie could not be found."
	msgRateLimited  = "Too many requests. Please wait a moment and try again."
	msgClient       = "Request failed. Please try again."
	msgUnknown      = "An unexpected error occurred. Please try again."
)

// Classify maps a transport or API failure to a displayable Failure.
func Classify(err error) *Failure {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.StatusCode)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Kind: KindTimeout, Message: msgTimeout}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Failure{Kind: KindTimeout, Message: msgTimeout}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Failure{Kind: KindNoConnectivity, Message: msgNoConnection}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" {
			return &Failure{Kind: KindNoConnectivity, Message: msgNoConnection}
		}
		return &Failure{Kind: KindNoConnectivity, Message: msgNetwork}
	}

	if netErr != nil {
		return &Failure{Kind: KindNoConnectivity, Message: msgNetwork}
	}

	return &Failure{Kind: KindUnknown, Message: msgUnknown}
}

func classifyStatus(status int) *Failure {
	f := &Failure{Status: status}
	switch {
	case status >= 500:
		f.Kind, f.Message = KindServerError, msgServer
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		f.Kind, f.Message = KindClientError, msgUnauthorized
	case status == http.StatusNotFound:
		f.Kind, f.Message = KindClientError, msgNotFound
	case status == http.StatusTooManyRequests:
		f.Kind, f.Message = KindClientError, msgRateLimited
	case status >= 400:
		f.Kind, f.Message = KindClientError, msgClient
	default:
		f.Kind, f.Message = KindUnknown, msgUnknown
	}
	return f
}
