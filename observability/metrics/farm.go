package metrics

import (
	"math/big"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// FarmMetrics tracks staking farm activity.
type FarmMetrics struct {
	operations       *prometheus.CounterVec
	failures         *prometheus.CounterVec
	totalStaked      *prometheus.GaugeVec
	accPerShare      *prometheus.GaugeVec
	rewardsClaimed   *prometheus.CounterVec
	forfeitedSeconds *prometheus.CounterVec
}

var (
	farmOnce     sync.Once
	farmRegistry *FarmMetrics
)

// Farm returns the lazily registered farm metrics.
func Farm() *FarmMetrics {
	farmOnce.Do(func() {
		farmRegistry = &FarmMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakefarm",
				Subsystem: "farm",
				Name:      "operations_total",
				Help:      "Count of committed farm operations by pool and kind.",
			}, []string{"pool", "op"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakefarm",
				Subsystem: "farm",
				Name:      "operation_failures_total",
				Help:      "Count of rejected farm operations by pool and kind.",
			}, []string{"pool", "op"}),
			totalStaked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "stakefarm",
				Subsystem: "farm",
				Name:      "total_staked",
				Help:      "Total stake units held by the pool.",
			}, []string{"pool"}),
			accPerShare: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "stakefarm",
				Subsystem: "farm",
				Name:      "acc_reward_per_share",
				Help:      "Reward accumulator per staked unit, unscaled.",
			}, []string{"pool"}),
			rewardsClaimed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakefarm",
				Subsystem: "farm",
				Name:      "rewards_claimed_total",
				Help:      "Reward units paid out through claims.",
			}, []string{"pool"}),
			forfeitedSeconds: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakefarm",
				Subsystem: "farm",
				Name:      "forfeited_seconds_total",
				Help:      "Seconds elapsed while the pool held no stake.",
			}, []string{"pool"}),
		}
		prometheus.MustRegister(
			farmRegistry.operations,
			farmRegistry.failures,
			farmRegistry.totalStaked,
			farmRegistry.accPerShare,
			farmRegistry.rewardsClaimed,
			farmRegistry.forfeitedSeconds,
		)
	})
	return farmRegistry
}

func poolLabel(pool string) string {
	pool = strings.TrimSpace(pool)
	if pool == "" {
		return "default"
	}
	return pool
}

func (m *FarmMetrics) ObserveOperation(pool, op string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(poolLabel(pool), op).Inc()
}

func (m *FarmMetrics) ObserveFailure(pool, op string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(poolLabel(pool), op).Inc()
}

// ObservePool records the pool gauges. The accumulator is divided by scale so
// the gauge reads in reward units per staked unit.
func (m *FarmMetrics) ObservePool(pool string, totalStaked, acc, scale *big.Int) {
	if m == nil {
		return
	}
	label := poolLabel(pool)
	m.totalStaked.WithLabelValues(label).Set(bigToFloat(totalStaked, nil))
	m.accPerShare.WithLabelValues(label).Set(bigToFloat(acc, scale))
}

func (m *FarmMetrics) AddRewardsClaimed(pool string, amount *big.Int) {
	if m == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	m.rewardsClaimed.WithLabelValues(poolLabel(pool)).Add(bigToFloat(amount, nil))
}

func (m *FarmMetrics) AddForfeitedSeconds(pool string, seconds uint64) {
	if m == nil || seconds == 0 {
		return
	}
	m.forfeitedSeconds.WithLabelValues(poolLabel(pool)).Add(float64(seconds))
}

func bigToFloat(v, scale *big.Int) float64 {
	if v == nil {
		return 0
	}
	f := new(big.Float).SetInt(v)
	if scale != nil && scale.Sign() > 0 {
		f.Quo(f, new(big.Float).SetInt(scale))
	}
	out, _ := f.Float64()
	return out
}
