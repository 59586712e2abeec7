package balance

import (
	"gonum.org/v1/gonum/mat"

	"github.com/padthaitofuhot/pve-cslb/internal/model"
	"github.com/padthaitofuhot/pve-cslb/internal/utils"
)

// Score is the weighted load of a usage vector against a capacity vector.
// Weights sum to 1.0 (validated in config), so scores live on the same
// [0,1]-ish scale as the tolerance band. A zero-capacity component counts
// as saturated instead of faulting.
func Score(used, capacity, weights *mat.VecDense) float64 {
	return mat.Dot(weights, utils.DivVecSat(used, capacity))
}

// NodeScore is the node's own load score.
func NodeScore(n *model.Node, weights *mat.VecDense) float64 {
	return Score(n.Used, n.Capacity, weights)
}

// WorkloadScoreOn is the share of node n's score attributable to workload
// w, i.e. how much n's score moves when w arrives at or leaves n.
func WorkloadScoreOn(w *model.Workload, n *model.Node, weights *mat.VecDense) float64 {
	return Score(w.Used, n.Capacity, weights)
}
