package engine

import (
	"math"

	"github.com/scrypster/warmconnector/pkg/types"
)

// HopDecay is the multiplier applied once per hop beyond the first.
const HopDecay = 0.9

// CombineStrengths scores a path from its leg strengths: the average leg
// strength, multiplied by HopDecay for every hop beyond the first, rounded
// and clamped to [0, 100]. A single leg scores its own (clamped) strength
// and no legs score 0.
//
// For two legs this is round(avg(s1, s2) * 0.9), so a two-hop path never
// outscores a direct edge as strong as its legs.
func CombineStrengths(legs ...int) int {
	if len(legs) == 0 {
		return 0
	}
	sum := 0
	for _, s := range legs {
		sum += types.ClampStrength(s)
	}
	avg := float64(sum) / float64(len(legs))
	score := avg * math.Pow(HopDecay, float64(len(legs)-1))
	return types.ClampStrength(int(math.Round(score)))
}
