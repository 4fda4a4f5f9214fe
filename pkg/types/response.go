package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the wire shape of every failure. Detail repeats Message so
// clients that only understand {detail: string} keep working.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// PageEnvelope wraps cursor-paginated list results.
type PageEnvelope[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}
