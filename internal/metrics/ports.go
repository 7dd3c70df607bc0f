// internal/metrics/ports.go
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"comport-service/internal/model"
)

const snapshotTimeout = 2 * time.Second

// PortSnapshotter returns the tracked ports
type PortSnapshotter interface {
	Snapshot(ctx context.Context) ([]model.Port, error)
}

// PortCollector exposes the port registry at scrape time
type PortCollector struct {
	ports PortSnapshotter

	portsDesc *prometheus.Desc
	ownedDesc *prometheus.Desc
	infoDesc  *prometheus.Desc
	upDesc    *prometheus.Desc
}

// NewPortCollector creates a collector reading from ports
func NewPortCollector(ports PortSnapshotter) *PortCollector {
	return &PortCollector{
		ports: ports,
		portsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "ports"),
			"Tracked serial ports by presence state.",
			[]string{"state"}, nil,
		),
		ownedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "ports_owned"),
			"Tracked serial ports currently held open by a process.",
			nil, nil,
		),
		infoDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "port_info"),
			"One series per tracked serial port (always 1).",
			[]string{"port", "state", "owner"}, nil,
		),
		upDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "registry_up"),
			"Whether the port registry answered the scrape (1=yes, 0=no).",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *PortCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.portsDesc
	ch <- c.ownedDesc
	ch <- c.infoDesc
	ch <- c.upDesc
}

// Collect implements prometheus.Collector
func (c *PortCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	ports, err := c.ports.Snapshot(ctx)
	if err != nil {
		ch <- prometheus.MustNewConstMetric(c.upDesc, prometheus.GaugeValue, 0)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.upDesc, prometheus.GaugeValue, 1)

	counts := map[model.PresentState]int{
		model.StateNewest:  0,
		model.StateNormal:  0,
		model.StateRemoved: 0,
	}
	owned := 0
	for _, p := range ports {
		counts[p.State]++
		if p.ProcessName != nil {
			owned++
		}
		ch <- prometheus.MustNewConstMetric(c.infoDesc, prometheus.GaugeValue, 1, p.Name, p.State.String(), p.Owner())
	}

	for state, n := range counts {
		ch <- prometheus.MustNewConstMetric(c.portsDesc, prometheus.GaugeValue, float64(n), state.String())
	}
	ch <- prometheus.MustNewConstMetric(c.ownedDesc, prometheus.GaugeValue, float64(owned))
}
