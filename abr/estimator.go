package abr

import (
	"sync"

	"github.com/mogiioin/hlsengine/config"
)

const (
	// MinWeight is the fast average weight, in seconds, needed before
	// estimates are trusted.
	MinWeight = 0.001
	// MinDelayMs floors sample durations.
	MinDelayMs = 50
)

// BandwidthEstimator tracks throughput in bits per second with a fast and a
// slow average and publishes the lower of the two. It is safe for concurrent
// use.
type BandwidthEstimator struct {
	mu              sync.Mutex
	slow            *EWMA
	fast            *EWMA
	defaultEstimate float64
}

// NewBandwidthEstimator returns an estimator. Half-lives are in seconds of
// download time; defaultEstimate is returned until enough samples arrived.
func NewBandwidthEstimator(slowHalfLife, fastHalfLife, defaultEstimate float64) *BandwidthEstimator {
	return &BandwidthEstimator{
		slow:            NewEWMA(slowHalfLife),
		fast:            NewEWMA(fastHalfLife),
		defaultEstimate: defaultEstimate,
	}
}

// NewBandwidthEstimatorFromConfig picks the live or VoD half-lives.
func NewBandwidthEstimatorFromConfig(cfg config.ABRConfig, live bool) *BandwidthEstimator {
	if live {
		return NewBandwidthEstimator(cfg.EWMASlowLive, cfg.EWMAFastLive, cfg.EWMADefaultEstimate)
	}
	return NewBandwidthEstimator(cfg.EWMASlowVoD, cfg.EWMAFastVoD, cfg.EWMADefaultEstimate)
}

// Sample records a download of numBytes that took durationMs milliseconds.
func (b *BandwidthEstimator) Sample(durationMs float64, numBytes int64) {
	durationMs = max(durationMs, MinDelayMs)
	durationS := durationMs / 1000
	bandwidth := float64(8*numBytes) / durationS

	b.mu.Lock()
	defer b.mu.Unlock()
	b.fast.Sample(durationS, bandwidth)
	b.slow.Sample(durationS, bandwidth)
}

// CanEstimate reports whether enough samples were recorded.
func (b *BandwidthEstimator) CanEstimate() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.canEstimate()
}

func (b *BandwidthEstimator) canEstimate() bool {
	return b.fast.TotalWeight() >= MinWeight
}

// Estimate returns the bandwidth estimate in bits per second.
func (b *BandwidthEstimator) Estimate() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.canEstimate() {
		return b.defaultEstimate
	}
	return min(b.fast.Estimate(), b.slow.Estimate())
}
