// Package placelocal is a client for the PlaceLocal tag API, which serves the
// ad tag markup of campaigns.
package placelocal

import "fmt"

// APIError is returned when a request fails or the response is not a valid
// API envelope.
type APIError struct {
	URL        string
	StatusCode int
	Message    string
	Cause      error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("placelocal error for %s: %s", e.URL, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// InvalidTagError is returned when markup does not contain the element its
// tag type renders.
type InvalidTagError struct {
	Type    string
	Message string
}

func (e *InvalidTagError) Error() string {
	return fmt.Sprintf("invalid %s tag: %s", e.Type, e.Message)
}
