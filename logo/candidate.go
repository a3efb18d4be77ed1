package logo

import "sort"

// Strategy names, in default priority order
const (
	StrategyAlt       = "alt"
	StrategySVG       = "svg"
	StrategyContainer = "container"
	StrategySrc       = "src"
	StrategyDataAttr  = "data-attr"
	StrategyContext   = "context"
	StrategyFallback  = "fallback"
	StrategyFavicon   = "favicon"
	StrategyGlobal    = "global"
	StrategyRerank    = "rerank"
	StrategyDynamic   = "dynamic"
)

// DefaultStrategies is the full pipeline
var DefaultStrategies = []string{
	StrategyAlt,
	StrategySVG,
	StrategyContainer,
	StrategySrc,
	StrategyDataAttr,
	StrategyContext,
	StrategyFallback,
	StrategyFavicon,
	StrategyGlobal,
	StrategyRerank,
	StrategyDynamic,
}

const maxCandidates = 20

// Candidate is a detected logo reference
type Candidate struct {
	URL        string  `json:"url"`
	Confidence float64 `json:"confidence"`
	Strategy   string  `json:"strategy"`
}

// candidateSet collects the candidates that failed the gate during one
// resolution so the rerank stage can revisit them
type candidateSet struct {
	items []Candidate
	index map[string]int
}

func newCandidateSet() *candidateSet {
	return &candidateSet{index: make(map[string]int)}
}

// add records c. A URL seen twice keeps its best confidence.
func (cs *candidateSet) add(c Candidate) {
	if c.URL == "" {
		return
	}
	if i, ok := cs.index[c.URL]; ok {
		if c.Confidence > cs.items[i].Confidence {
			cs.items[i] = c
		}
		return
	}
	if len(cs.items) >= maxCandidates {
		return
	}
	cs.index[c.URL] = len(cs.items)
	cs.items = append(cs.items, c)
}

func (cs *candidateSet) len() int {
	return len(cs.items)
}

// top returns the n candidates with the highest confidence, ties kept in
// collection order
func (cs *candidateSet) top(n int) []Candidate {
	sorted := make([]Candidate, len(cs.items))
	copy(sorted, cs.items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
