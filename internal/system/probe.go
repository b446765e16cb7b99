// Package system reads host metrics through gopsutil.
package system

import (
	"context"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
)

// cpuSampleInterval is how long CPUPercent measures for.
const cpuSampleInterval = 100 * time.Millisecond

// Usage is a used/total pair with its percentage.
type Usage struct {
	Used    uint64
	Total   uint64
	Percent float64
}

// Probe reads raw host counters.
type Probe interface {
	CPUPercent(ctx context.Context) (float64, error)
	Memory(ctx context.Context) (Usage, error)
	Disk(ctx context.Context, path string) (Usage, error)
	// Temperature returns nil when no CPU sensor is present.
	Temperature(ctx context.Context) (*float64, error)
	NetCounters(ctx context.Context) (sent, recv uint64, err error)
}

// HostProbe is the gopsutil implementation of Probe.
type HostProbe struct{}

func (HostProbe) CPUPercent(ctx context.Context) (float64, error) {
	p, err := cpu.PercentWithContext(ctx, cpuSampleInterval, false)
	if err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	return p[0], nil
}

func (HostProbe) Memory(ctx context.Context) (Usage, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Usage{}, err
	}
	return Usage{Used: vm.Used, Total: vm.Total, Percent: vm.UsedPercent}, nil
}

func (HostProbe) Disk(ctx context.Context, path string) (Usage, error) {
	du, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return Usage{}, err
	}
	return Usage{Used: du.Used, Total: du.Total, Percent: du.UsedPercent}, nil
}

// Temperature picks the first sensor whose key names the CPU, such as
// cpu-thermal on a Raspberry Pi or cpu_thermal on newer kernels.
func (HostProbe) Temperature(ctx context.Context) (*float64, error) {
	temps, err := host.SensorsTemperaturesWithContext(ctx)
	if len(temps) == 0 {
		return nil, err
	}
	for _, t := range temps {
		key := strings.ToLower(t.SensorKey)
		if strings.HasPrefix(key, "cpu") {
			v := t.Temperature
			return &v, nil
		}
	}
	return nil, nil
}

func (HostProbe) NetCounters(ctx context.Context) (uint64, uint64, error) {
	counters, err := psnet.IOCountersWithContext(ctx, false)
	if err != nil {
		return 0, 0, err
	}
	if len(counters) == 0 {
		return 0, 0, nil
	}
	return counters[0].BytesSent, counters[0].BytesRecv, nil
}
