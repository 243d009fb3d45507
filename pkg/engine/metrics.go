package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	templateRenders = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flow_template_renders_total",
		Help: "Templates rendered against an execution context",
	})

	placeholderFaults = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flow_template_placeholder_faults_total",
		Help: "Placeholders that faulted during resolution and were left as literal text",
	})

	templateAborts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flow_template_aborts_total",
		Help: "Whole-template faults where the original template was returned unrendered",
	})

	sideEffectRemarks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flow_side_effect_remarks_total",
		Help: "Side-effecting nodes marked executed more than once for the same node and path",
	})
)
