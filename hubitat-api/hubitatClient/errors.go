package hubitatClient

import "fmt"

// FetchError reports a failed exchange with the hub. The client never retries.
type FetchError struct {
	Op    string
	Cause error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("hubitat %s: %v", e.Op, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// StatusError is the cause of a FetchError for non-2xx answers.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}
