package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	LoginSuccessTotal    prometheus.Counter
	LoginFailureTotal    prometheus.Counter
	TokensRefreshedTotal prometheus.Counter
	TokenReuseTotal      prometheus.Counter
	UserRegisteredTotal  prometheus.Counter
	LogoutTotal          prometheus.Counter
)

// Init initializes and registers the auth metrics. It should be called once
// at application startup.
func Init(reg prometheus.Registerer) {
	LoginSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tokengate_logins_success_total",
		Help: "Total number of successful logins.",
	})
	LoginFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tokengate_logins_failure_total",
		Help: "Total number of failed login attempts.",
	})
	TokensRefreshedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tokengate_tokens_refreshed_total",
		Help: "Total number of refresh-token rotations.",
	})
	TokenReuseTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tokengate_token_reuse_total",
		Help: "Total number of refresh-token reuse detections.",
	})
	UserRegisteredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tokengate_users_registered_total",
		Help: "Total number of users registered.",
	})
	LogoutTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tokengate_logouts_total",
		Help: "Total number of logouts (single and all-device).",
	})

	if reg == nil {
		return
	}
	for _, c := range []prometheus.Collector{
		LoginSuccessTotal, LoginFailureTotal, TokensRefreshedTotal,
		TokenReuseTotal, UserRegisteredTotal, LogoutTotal,
	} {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("failed to register metric")
		}
	}
}

func init() {
	// Counters must be usable even when no registry is wired (tests,
	// library use); Init re-creates and registers them for the server.
	Init(nil)
}
