// Request observation middleware: per-route counters and latency histograms
// plus one structured log line per request.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"AutoDJ-Go/pkg/metrics"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Instrument wraps h with metrics and request logging under the given route
// label. The label is the registered pattern, not the raw URL, to keep
// cardinality bounded.
func Instrument(route string, reg *metrics.Registry, log *logrus.Entry, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		h(rec, r)
		elapsed := time.Since(start)

		if reg != nil {
			reg.RequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
			reg.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
		}
		if log != nil {
			log.WithFields(logrus.Fields{
				"route":   route,
				"method":  r.Method,
				"status":  rec.status,
				"elapsed": elapsed.String(),
			}).Info("request")
		}
	}
}
