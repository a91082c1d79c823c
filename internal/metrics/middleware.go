package metrics

import (
	"net/http"
	"strconv"
	"time"
)

// Middleware records request count and duration. Routes are labelled by the
// matched ServeMux pattern so connection and table names do not become labels.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := NewRecorder(w)
		// Deferred so aborted streams are still counted.
		defer func() {
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			RequestTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.Status())).Inc()
			RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		}()
		next.ServeHTTP(rec, r)
	})
}

// Recorder captures the response status while keeping streaming support.
type Recorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func NewRecorder(w http.ResponseWriter) *Recorder {
	if rec, ok := w.(*Recorder); ok {
		return rec
	}
	return &Recorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *Recorder) WriteHeader(code int) {
	if !r.wrote {
		r.status = code
		r.wrote = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *Recorder) Write(b []byte) (int, error) {
	r.wrote = true
	return r.ResponseWriter.Write(b)
}

// Written reports whether the response header has gone out.
func (r *Recorder) Written() bool { return r.wrote }

// Status is the status sent, or 200 if the handler never set one.
func (r *Recorder) Status() int { return r.status }

// Flush forwards to the underlying writer so streamed lines reach the client.
func (r *Recorder) Flush() {
	r.wrote = true
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *Recorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }
