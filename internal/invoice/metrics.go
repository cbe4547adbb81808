package invoice

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "craftdesk",
	Subsystem: "invoice",
	Name:      "transitions_total",
	Help:      "Gateway events applied to invoices, by event kind and gateway.",
}, []string{"event", "gateway"})
