package middleware

import (
	"bytes"
	"net/http"
)

// responseRecorder tracks the status and size of a response and, when
// keepBody is set, a copy of the body for replay.
type responseRecorder struct {
	http.ResponseWriter
	status   int
	written  int
	keepBody bool
	body     bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	if r.keepBody {
		r.body.Write(b)
	}
	n, err := r.ResponseWriter.Write(b)
	r.written += n
	return n, err
}

func (r *responseRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}
