package session

import (
	"encoding/json"
	"net/http"
)

// Response is the outcome of one AJAX call.
//
// A successful response carries a JSON body. A non-successful one is a
// remote failure: it is returned without an error, renders as its status
// line, and reports a *RemoteFailureError through Err.
type Response struct {
	Method     string
	Endpoint   string
	StatusCode int
	// Status is the status line without protocol, e.g. "404 Not Found".
	Status string
	Header http.Header
	Body   json.RawMessage
}

// Failed reports whether the server answered with a non-2xx status.
func (r *Response) Failed() bool {
	return r.StatusCode < 200 || r.StatusCode > 299
}

// Err returns a *RemoteFailureError for failed responses and nil otherwise.
func (r *Response) Err() error {
	if !r.Failed() {
		return nil
	}
	return &RemoteFailureError{
		Method:     r.Method,
		Endpoint:   r.Endpoint,
		StatusCode: r.StatusCode,
		Status:     r.Status,
	}
}

// Decode unmarshals the JSON payload of a successful response into v.
func (r *Response) Decode(v any) error {
	if err := r.Err(); err != nil {
		return err
	}
	return json.Unmarshal(r.Body, v)
}

// String renders the outcome: the JSON payload on success, the status line
// on failure.
func (r *Response) String() string {
	if r.Failed() {
		return r.Status
	}
	return string(r.Body)
}
