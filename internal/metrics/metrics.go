// Package metrics exposes Prometheus counters for the HTTP layer and the
// gacha domain.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what services and middleware report to. Tests use Nop.
type Recorder interface {
	RecordHTTPStatus(statusCode int)
	RecordSignup(provider string)
	RecordLogin(success bool)
	RecordDraw(isNew bool)
	RecordCollectionAdd()
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	httpStatus     *prometheus.CounterVec
	signups        *prometheus.CounterVec
	logins         *prometheus.CounterVec
	draws          *prometheus.CounterVec
	collectionAdds prometheus.Counter
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates the counters and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "village_gacha_http_responses_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "village_gacha_signups_total",
			Help: "New accounts by sign-up provider.",
		}, []string{"provider"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "village_gacha_logins_total",
			Help: "Password login attempts by result.",
		}, []string{"result"}),
		draws: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "village_gacha_draws_total",
			Help: "Successful gacha draws, split by whether the village was new to the user.",
		}, []string{"kind"}),
		collectionAdds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "village_gacha_collection_adds_total",
			Help: "Villages added to collections.",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.signups,
		c.logins,
		c.draws,
		c.collectionAdds,
	)
	return c
}

func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSignup counts an account creation; provider is "password" or "github".
func (c *Collector) RecordSignup(provider string) {
	c.signups.WithLabelValues(provider).Inc()
}

func (c *Collector) RecordLogin(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.logins.WithLabelValues(result).Inc()
}

func (c *Collector) RecordDraw(isNew bool) {
	kind := "duplicate"
	if isNew {
		kind = "new"
	}
	c.draws.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordCollectionAdd() {
	c.collectionAdds.Inc()
}

// Handler serves the registry for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordSignup(string)  {}
func (Nop) RecordLogin(bool)     {}
func (Nop) RecordDraw(bool)      {}
func (Nop) RecordCollectionAdd() {}
