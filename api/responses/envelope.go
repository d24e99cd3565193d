package responses

// requestIDHeader mirrors the header set by the request id middleware.
const requestIDHeader = "X-Request-Id"

// Success wraps every 2xx payload.
type Success struct {
	Data any `json:"data"`
}

// Failure is the body of every non-2xx response. RequestID repeats the
// X-Request-Id response header so clients can quote it in bug reports.
type Failure struct {
	Error     FailureDetail `json:"error"`
	RequestID string        `json:"request_id,omitempty"`
}

type FailureDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}
