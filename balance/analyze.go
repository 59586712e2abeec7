package balance

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/padthaitofuhot/pve-cslb/internal/model"
)

type NodeClass int

const (
	BALANCED NodeClass = iota
	SURPLUS
	DEFICIT
)

func (c NodeClass) String() string {
	switch c {
	case SURPLUS:
		return "surplus"
	case DEFICIT:
		return "deficit"
	default:
		return "balanced"
	}
}

type NodeLoad struct {
	Node  *model.Node
	Score float64
	Class NodeClass
}

// Analysis is the classified view of the eligible nodes: the cluster mean
// score and the surplus/deficit rankings, most distant from the mean
// first.
type Analysis struct {
	Mean      float64
	Tolerance float64
	Loads     []*NodeLoad
	Surplus   []*NodeLoad
	Deficit   []*NodeLoad
}

// Balanced reports whether the pass should stop with an empty plan: with
// no surplus or no deficit there is no pair to move between.
func (a *Analysis) Balanced() bool {
	return len(a.Surplus) == 0 || len(a.Deficit) == 0
}

// Analyze scores every eligible node, takes the arithmetic mean, and
// classifies nodes against the tolerance band around it. The mean is
// fixed for the rest of the run; the planner's working scores move against
// it so the band cannot drift mid-plan.
func Analyze(s *model.ClusterSnapshot, weights *mat.VecDense, tolerance float64) *Analysis {
	analysis := &Analysis{Tolerance: tolerance}

	for _, name := range s.NodeNames() {
		node := s.Nodes[name]
		if !node.Eligible {
			continue
		}

		analysis.Loads = append(analysis.Loads, &NodeLoad{
			Node:  node,
			Score: NodeScore(node, weights),
		})
	}

	if len(analysis.Loads) == 0 {
		return analysis
	}

	sum := 0.0
	for _, load := range analysis.Loads {
		sum += load.Score
	}
	analysis.Mean = sum / float64(len(analysis.Loads))

	for _, load := range analysis.Loads {
		switch {
		case load.Score-analysis.Mean > tolerance:
			load.Class = SURPLUS
			analysis.Surplus = append(analysis.Surplus, load)
		case analysis.Mean-load.Score > tolerance:
			load.Class = DEFICIT
			analysis.Deficit = append(analysis.Deficit, load)
		default:
			load.Class = BALANCED
		}
	}

	sort.SliceStable(analysis.Surplus, func(i, j int) bool {
		return analysis.Surplus[i].Score > analysis.Surplus[j].Score
	})
	sort.SliceStable(analysis.Deficit, func(i, j int) bool {
		return analysis.Deficit[i].Score < analysis.Deficit[j].Score
	})

	return analysis
}
