package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	urlsAnalyzed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "phishguard",
		Subsystem: "gate",
		Name:      "urls_analyzed_total",
		Help:      "Total URLs classified over the network (cache hits excluded).",
	})

	phishingBlocked = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "phishguard",
		Subsystem: "gate",
		Name:      "phishing_blocked_total",
		Help:      "Total navigations blocked as phishing.",
	})

	warningsShown = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "phishguard",
		Subsystem: "gate",
		Name:      "warnings_shown_total",
		Help:      "Total warning banners shown for suspicious navigations.",
	})

	classificationErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "phishguard",
		Subsystem: "api",
		Name:      "classification_errors_total",
		Help:      "Total failed classification requests (timeouts, non-2xx, bad bodies).",
	})
)

func init() {
	prometheus.MustRegister(
		urlsAnalyzed,
		phishingBlocked,
		warningsShown,
		classificationErrors,
	)
}
