package system

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/DanielTwine/dloperOS/internal/models"
)

type fakeProbe struct {
	cpu    float64
	memory Usage
	disk   Usage
	temp   *float64

	cpuErr  error
	tempErr error

	mu      sync.Mutex
	sent    uint64
	recv    uint64
	netErr  error
	netRead atomic.Int32
}

func (f *fakeProbe) CPUPercent(context.Context) (float64, error) { return f.cpu, f.cpuErr }
func (f *fakeProbe) Memory(context.Context) (Usage, error)       { return f.memory, nil }
func (f *fakeProbe) Disk(context.Context, string) (Usage, error) { return f.disk, nil }
func (f *fakeProbe) Temperature(context.Context) (*float64, error) {
	return f.temp, f.tempErr
}

func (f *fakeProbe) NetCounters(context.Context) (uint64, uint64, error) {
	f.netRead.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent, f.recv, f.netErr
}

func (f *fakeProbe) set(sent, recv uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent, f.recv = sent, recv
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestNetSampler_Rate(t *testing.T) {
	p := &fakeProbe{}
	s := NewNetSampler(p)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	p.set(1000, 5000)
	if err := s.Sample(ctx, start); err != nil {
		t.Fatal(err)
	}
	if got := s.Rate(); got != (models.NetworkRate{}) {
		t.Errorf("rate after first sample = %+v, want zero", got)
	}

	p.set(3000, 9000)
	if err := s.Sample(ctx, start.Add(2*time.Second)); err != nil {
		t.Fatal(err)
	}
	want := models.NetworkRate{BytesSentPerSec: 1000, BytesRecvPerSec: 2000}
	if got := s.Rate(); got != want {
		t.Errorf("rate = %+v, want %+v", got, want)
	}

	// counters reset
	p.set(10, 20)
	if err := s.Sample(ctx, start.Add(3*time.Second)); err != nil {
		t.Fatal(err)
	}
	if got := s.Rate(); got != (models.NetworkRate{}) {
		t.Errorf("rate after reset = %+v, want zero", got)
	}
}

func TestStartNetSampler_Samples(t *testing.T) {
	p := &fakeProbe{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartNetSampler(ctx, NewNetSampler(p), 10*time.Millisecond, zap.NewNop())

	time.Sleep(200 * time.Millisecond)
	cancel()

	if n := p.netRead.Load(); n < 2 {
		t.Errorf("expected at least 2 samples, got %d", n)
	}
}

func TestStartNetSampler_ErrorLogged(t *testing.T) {
	p := &fakeProbe{netErr: errors.New("no counters")}

	var buf lockedBuffer
	encCfg := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(&buf),
		zapcore.ErrorLevel,
	)
	logger := zap.New(core)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartNetSampler(ctx, NewNetSampler(p), 10*time.Millisecond, logger)

	time.Sleep(200 * time.Millisecond)
	cancel()

	out := buf.String()
	if !strings.Contains(out, "failed to sample network counters") {
		t.Errorf("expected error log, got:\n%s", out)
	}
}

func TestStartNetSampler_CancelBeforeTicker(t *testing.T) {
	p := &fakeProbe{}
	ctx, cancel := context.WithCancel(context.Background())

	StartNetSampler(ctx, NewNetSampler(p), 100*time.Millisecond, zap.NewNop())
	cancel()

	time.Sleep(50 * time.Millisecond)

	if n := p.netRead.Load(); n > 1 {
		t.Errorf("expected only the initial sample, got %d reads", n)
	}
}
