package system

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DanielTwine/dloperOS/internal/models"
)

// DefaultSampleInterval is the network sampling period used by the server.
const DefaultSampleInterval = time.Second

// NetSampler keeps the most recent network throughput. Rates are computed
// from the delta between two consecutive counter reads.
type NetSampler struct {
	read func(ctx context.Context) (sent, recv uint64, err error)

	mu       sync.RWMutex
	primed   bool
	lastSent uint64
	lastRecv uint64
	lastAt   time.Time
	rate     models.NetworkRate
}

func NewNetSampler(p Probe) *NetSampler {
	return &NetSampler{read: p.NetCounters}
}

// Rate returns the last computed throughput. It is zero until two samples
// have been taken.
func (s *NetSampler) Rate() models.NetworkRate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rate
}

// Sample reads the counters once and updates the rate.
func (s *NetSampler) Sample(ctx context.Context, now time.Time) error {
	sent, recv, err := s.read(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.primed {
		if secs := now.Sub(s.lastAt).Seconds(); secs > 0 {
			s.rate = models.NetworkRate{
				BytesSentPerSec: perSecond(s.lastSent, sent, secs),
				BytesRecvPerSec: perSecond(s.lastRecv, recv, secs),
			}
		}
	}
	s.primed = true
	s.lastSent, s.lastRecv, s.lastAt = sent, recv, now
	return nil
}

// perSecond treats a counter that went backwards (interface reset) as no
// traffic.
func perSecond(prev, cur uint64, secs float64) uint64 {
	if cur < prev {
		return 0
	}
	return uint64(float64(cur-prev) / secs)
}

// StartNetSampler samples s every interval until ctx is cancelled.
func StartNetSampler(
	ctx context.Context,
	s *NetSampler,
	interval time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		if err := s.Sample(ctx, time.Now()); err != nil {
			log.Warn("failed to sample network counters", zap.Error(err))
		}
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if err := s.Sample(ctx, now); err != nil {
					log.Error("failed to sample network counters", zap.Error(err))
				}
			}
		}
	}()
}
