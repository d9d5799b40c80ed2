package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_sent_total",
		Help: "Messages accepted by the send protocol, by result.",
	}, []string{"result"})

	ReactionToggles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_reaction_toggles_total",
		Help: "Successful reaction toggles.",
	})

	ReceiptBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_receipt_batches_total",
		Help: "Receipt batch updates, by kind.",
	}, []string{"kind"})

	ActiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_active_subscriptions",
		Help: "Live realtime subscriptions.",
	})
)

// Handler returns an http.Handler for Prometheus scraping
func Handler() http.Handler {
	return promhttp.Handler()
}
