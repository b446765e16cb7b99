package system

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/DanielTwine/dloperOS/internal/models"
)

// Collector assembles a SystemMetrics snapshot.
type Collector struct {
	probe    Probe
	net      *NetSampler
	diskPath string
	log      *zap.Logger
}

// NewCollector reports disk usage for the filesystem holding diskPath.
func NewCollector(p Probe, net *NetSampler, diskPath string, log *zap.Logger) *Collector {
	return &Collector{probe: p, net: net, diskPath: diskPath, log: log}
}

func (c *Collector) Snapshot(ctx context.Context) (*models.SystemMetrics, error) {
	cpuPct, err := c.probe.CPUPercent(ctx)
	if err != nil {
		return nil, fmt.Errorf("read cpu: %w", err)
	}
	memUsage, err := c.probe.Memory(ctx)
	if err != nil {
		return nil, fmt.Errorf("read memory: %w", err)
	}
	diskUsage, err := c.probe.Disk(ctx, c.diskPath)
	if err != nil {
		return nil, fmt.Errorf("read disk: %w", err)
	}
	temp, err := c.probe.Temperature(ctx)
	if err != nil {
		c.log.Debug("temperature unavailable", zap.Error(err))
		temp = nil
	}

	return &models.SystemMetrics{
		CPUPercent:    cpuPct,
		MemoryPercent: round2(memUsage.Percent),
		MemoryUsed:    memUsage.Used,
		MemoryTotal:   memUsage.Total,
		DiskPercent:   round2(diskUsage.Percent),
		DiskUsed:      diskUsage.Used,
		DiskTotal:     diskUsage.Total,
		Temperature:   temp,
		Network:       c.net.Rate(),
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
