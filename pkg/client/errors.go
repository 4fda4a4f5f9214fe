package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// ErrStillProcessing is returned by WaitForReview when the job is still
// running after the wait budget. It is a soft failure; the job may finish
// later.
var ErrStillProcessing = errors.New("client: review still processing")

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Code    string
	Message string
	Detail  string
	Details json.RawMessage
	// RetryAfter is set from the Retry-After header on 429s.
	RetryAfter int
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Detail
	}
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code == "" {
		return fmt.Sprintf("api error %d: %s", e.Status, msg)
	}
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, msg)
}

// IsConflict reports a stale expected version on a bulk replace.
func (e *APIError) IsConflict() bool {
	return e.Status == http.StatusConflict && e.Code == "VERSION_CONFLICT"
}

// CurrentVersion pulls current_version out of a version conflict.
func (e *APIError) CurrentVersion() (int64, bool) {
	if len(e.Details) == 0 {
		return 0, false
	}
	var d struct {
		CurrentVersion *int64 `json:"current_version"`
	}
	if err := json.Unmarshal(e.Details, &d); err != nil || d.CurrentVersion == nil {
		return 0, false
	}
	return *d.CurrentVersion, true
}

// AsAPIError unwraps err into an *APIError when it is one.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsNotFound reports a 404 from the API.
func IsNotFound(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Status == http.StatusNotFound
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		apiErr.RetryAfter, _ = strconv.Atoi(ra)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil || len(raw) == 0 {
		return apiErr
	}
	var env struct {
		Error struct {
			Code    string          `json:"code"`
			Message string          `json:"message"`
			Detail  string          `json:"detail"`
			Details json.RawMessage `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		apiErr.Message = string(raw)
		return apiErr
	}
	apiErr.Code = env.Error.Code
	apiErr.Message = env.Error.Message
	apiErr.Detail = env.Error.Detail
	apiErr.Details = env.Error.Details
	return apiErr
}
