package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Summary gathers a registry and flattens counter, gauge, and histogram
// samples into a name to value map, with label values appended to the metric
// name. Histograms report their sample count. Commands use this to log the
// collected metrics once a run completes.
func Summary(registry *prometheus.Registry) (map[string]float64, error) {
	families, err := registry.Gather()
	if err != nil {
		return nil, err
	}

	summary := make(map[string]float64)
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			parts := []string{family.GetName()}
			for _, label := range metric.GetLabel() {
				parts = append(parts, label.GetValue())
			}
			name := strings.Join(parts, "_")

			switch {
			case metric.GetCounter() != nil:
				summary[name] = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				summary[name] = metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				summary[name] = float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	return summary, nil
}
