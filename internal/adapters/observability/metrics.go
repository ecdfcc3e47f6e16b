package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "realty", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "realty", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	MirrorWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "realty", Name: "mirror_writes_total", Help: "Mirror rewrites by kind and result."},
		[]string{"kind", "result"}, // result: ok|error
	)
	MirrorLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "realty", Name: "mirror_write_duration_seconds",
			Help:    "Mirror rewrite duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	ContentReads = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "realty", Name: "content_reads_total", Help: "Public reads by the source that answered them."},
		[]string{"kind", "source", "fallback"}, // source: store|file|default|not_found
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "realty", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del|incr
	)
)

// Serve exposes h on a separate metrics listener; an empty addr disables it.
func Serve(addr string, h http.Handler) {
	if addr == "" {
		return // disabled
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, MirrorWrites, MirrorLatency, ContentReads, CacheEvents)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveMirror(kind string, err error, dur time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	MirrorWrites.WithLabelValues(kind, result).Inc()
	MirrorLatency.WithLabelValues(kind).Observe(dur.Seconds())
}

func ObserveRead(kind, source string, fallback bool) {
	ContentReads.WithLabelValues(kind, source, strconv.FormatBool(fallback)).Inc()
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del|incr
	CacheEvents.WithLabelValues(cache, event).Inc()
}
