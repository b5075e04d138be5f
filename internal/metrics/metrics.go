// Package metrics exposes Prometheus counters for the inbound webhook and
// campaign processing paths.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Inbound webhook outcomes: matched, created, rejected, error.
var InboundEmails = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "inboxdesk",
	Name:      "inbound_emails_total",
	Help:      "Inbound webhook emails processed, by outcome.",
}, []string{"outcome"})

// Campaign recipient sends: sent, failed.
var CampaignSends = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "inboxdesk",
	Name:      "campaign_sends_total",
	Help:      "Campaign recipient send attempts, by result.",
}, []string{"result"})

// Campaign runs that skipped a campaign (missing SMTP config, lock held).
var CampaignSkips = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "inboxdesk",
	Name:      "campaign_skips_total",
	Help:      "Campaigns skipped during a processor run, by reason.",
}, []string{"reason"})

// Handler serves the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
