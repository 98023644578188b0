package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrNotConfigured marks a missing external-service setting. It is an
// operator-actionable setup problem, reported separately from runtime errors
// so nobody wastes time retrying a request that can never succeed.
var ErrNotConfigured = errors.New("service is not configured")

// UpstreamError covers both transport problems (non-2xx, malformed body) and
// semantic ones (a 200 whose payload says the operation failed). The two are
// treated identically: never surfaced as success.
type UpstreamError struct {
	Service string
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s service error: status %d: %s", e.Service, e.Status, e.Message)
	}
	return fmt.Sprintf("%s service error: %s", e.Service, e.Message)
}

// ReportedFailure is a well-formed result whose payload explicitly says the
// operation failed. It terminates the job as Failed rather than being bounced
// back to the sender as malformed.
type ReportedFailure struct {
	Message string
}

func (e *ReportedFailure) Error() string { return e.Message }

// decodeUpstreamError extracts an error message from a non-2xx response body,
// tolerating both {"error":"..."} and {"error":{"message":"..."}} shapes.
func decodeUpstreamError(service string, resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewBuffer(body))

	var flat struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &flat); err == nil && flat.Error != "" {
		return &UpstreamError{Service: service, Status: resp.StatusCode, Message: flat.Error}
	}

	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &nested); err == nil && nested.Error.Message != "" {
		return &UpstreamError{Service: service, Status: resp.StatusCode, Message: nested.Error.Message}
	}

	return &UpstreamError{Service: service, Status: resp.StatusCode, Message: string(body)}
}
