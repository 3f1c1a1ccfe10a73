package ocsp

import (
	"encoding/base64"
	"io"
	"net/http"
	"strings"

	"github.com/jmhodges/clock"

	"github.com/silverline-ca/corepki/metrics"
	"github.com/silverline-ca/corepki/metrics/measured_http"
)

const (
	contentType           = "application/ocsp-response"
	maxGETPathSegmentSize = 2 * 1024 // base64 of a ~1.5KB DER request
)

// Mux builds the HTTP surface RFC 6960 Appendix A describes: POST with
// the raw DER request as the body, or GET with the request in standard
// base64 (URL-escaped) as the final path segment, both routed to the same
// Responder. Grounded on cmd/ocsp-responder/main_test.go's mux(stats,
// path, src) shape, generalized from cfssl's ocsp.Responder to this
// package's own Responder and wrapped in measured_http the way every
// boulder HTTP front door is instrumented.
func Mux(r *Responder, path string, clk clock.Clock, scope metrics.Scope) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodGet && !r.SupportsHTTPGet() {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			scope.Inc("Requests.Malformed", 1)
			return
		}
		der, ok := requestDER(req, path, r.MaxRequestSize())
		if !ok {
			http.Error(w, "malformed OCSP request", http.StatusBadRequest)
			scope.Inc("Requests.Malformed", 1)
			return
		}
		respDER, err := r.Respond(req.Context(), der)
		if err != nil {
			http.Error(w, "OCSP responder error", http.StatusInternalServerError)
			scope.Inc("Requests.Errors", 1)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", itoa(len(respDER)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(respDER)
		scope.Inc("Requests.Served", 1)
	})
	return measured_http.New(mux, clk)
}

func requestDER(req *http.Request, path string, maxRequestBytes int) ([]byte, bool) {
	switch req.Method {
	case http.MethodPost:
		body, err := io.ReadAll(io.LimitReader(req.Body, int64(maxRequestBytes)+1))
		if err != nil || len(body) > maxRequestBytes {
			return nil, false
		}
		return body, true
	case http.MethodGet:
		segment := strings.TrimPrefix(strings.TrimPrefix(req.URL.Path, path), "/")
		if segment == "" || len(segment) > maxGETPathSegmentSize {
			return nil, false
		}
		der, err := base64.StdEncoding.DecodeString(segment)
		if err != nil {
			return nil, false
		}
		return der, true
	default:
		return nil, false
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
