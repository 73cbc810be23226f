// Package memtier classifies total system memory into a coarse tier used to
// pick cache budgets at startup. The tier is queried once; it is not a
// runtime memory-pressure signal.
package memtier

// Tier is the system memory class.
type Tier int

const (
	// TierUnknown means the tier has not been determined; callers should
	// detect it before sizing caches.
	TierUnknown Tier = iota

	// TierLow means the host has little RAM; cache budgets are halved.
	TierLow

	// TierHigh means the host has plenty of RAM; full cache budgets apply.
	TierHigh
)

// highTierThreshold is the total-RAM boundary between the low and high
// tiers.
const highTierThreshold = 1 << 30 // 1GiB

func (t Tier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Classify maps a total physical memory size in bytes to a tier.
func Classify(totalBytes uint64) Tier {
	if totalBytes >= highTierThreshold {
		return TierHigh
	}
	return TierLow
}

// Adjust scales a cache byte budget for the given tier: the full budget on
// high-memory hosts, half otherwise.
func Adjust(budget int64, t Tier) int64 {
	if t == TierHigh {
		return budget
	}
	return budget / 2
}

// Detect queries the host's total physical memory and classifies it.
// Falls back to TierLow if the query fails, which only shrinks caches.
func Detect() Tier {
	total, err := totalMemory()
	if err != nil {
		return TierLow
	}
	return Classify(total)
}
