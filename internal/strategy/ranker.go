package strategy

import (
	"sort"

	"github.com/mkarlsen/polyarb/internal/domain"
)

// strategyOrder breaks score ties; forecast-driven signals outrank structural
// ones so that, capital permitting, the directional book fills first.
var strategyOrder = map[domain.StrategyKind]int{
	domain.StrategyWeather:       0,
	domain.StrategyCrossPlatform: 1,
}

// Rank orders signals by score descending and returns at most limit of them.
// Signals below minEdge are dropped. Ordering is fully deterministic: ties on
// score fall back to strategy kind, then market ID, so the same inputs always
// produce the same ranking.
func Rank(signals []domain.Signal, minEdge float64, limit int) []domain.Signal {
	ranked := make([]domain.Signal, 0, len(signals))
	for _, s := range signals {
		if abs(s.Edge) < minEdge {
			continue
		}
		ranked = append(ranked, s)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := ranked[i].Score(), ranked[j].Score()
		if si != sj {
			return si > sj
		}
		if ranked[i].Strategy != ranked[j].Strategy {
			return strategyOrder[ranked[i].Strategy] < strategyOrder[ranked[j].Strategy]
		}
		return ranked[i].MarketID < ranked[j].MarketID
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
