package balance

import (
	"math"
	"strings"

	"github.com/emirpasic/gods/trees/binaryheap"
	"gonum.org/v1/gonum/mat"

	"github.com/padthaitofuhot/pve-cslb/internal/model"
	"github.com/padthaitofuhot/pve-cslb/internal/utils"
)

// workingNode is the planner's private projection of a node: snapshot
// utilization plus the effect of every move accepted so far. Owned by one
// planning pass, never shared.
type workingNode struct {
	node      *model.Node
	used      *mat.VecDense
	workloads []*model.Workload
}

func (w *workingNode) score(weights *mat.VecDense) float64 {
	return Score(w.used, w.node.Capacity, weights)
}

// Plan runs the greedy simulate-before-commit pass: pair the most surplus
// node with the most deficit node, move the workload sized closest to half
// the score gap, re-rank, repeat. Bounded by maxMigrations, no VMID picked
// twice, and two guards against oscillation: a source is never planned
// below mean-tolerance and a target never above mean+tolerance.
func Plan(s *model.ClusterSnapshot, analysis *Analysis, weights *mat.VecDense, maxMigrations int) *model.MigrationPlan {
	plan := &model.MigrationPlan{Mean: analysis.Mean}
	if analysis.Balanced() {
		return plan
	}

	working := make(map[string]*workingNode)
	for _, load := range analysis.Loads {
		if load.Class == BALANCED {
			continue
		}

		wn := &workingNode{
			node: load.Node,
			used: utils.CloneVec(load.Node.Used),
		}
		for _, workload := range s.Workloads[load.Node.Name] {
			if workload.Eligible {
				wn.workloads = append(wn.workloads, workload)
			}
		}
		working[load.Node.Name] = wn
	}

	consumed := make(map[int]bool)

	for len(plan.Actions) < maxMigrations {
		surplus := rank(working, weights, SURPLUS, analysis)
		deficit := rank(working, weights, DEFICIT, analysis)
		if len(surplus) == 0 || len(deficit) == 0 {
			break
		}

		accepted := false

	search:
		for _, src := range surplus {
			for _, dst := range deficit {
				candidate, sourceAfter := chooseWorkload(src, dst, weights, analysis, consumed)
				if candidate == nil {
					// Nothing movable on this source without
					// overcorrecting it; demote the source.
					continue search
				}

				targetAfter := Score(utils.AddVec(dst.used, candidate.Used), dst.node.Capacity, weights)
				if targetAfter > analysis.Mean+analysis.Tolerance {
					// Overshoot guard: the move would turn the
					// target into a new surplus node. Demote the
					// target, no plan slot consumed.
					continue
				}

				utils.SSubVec(src.used, candidate.Used)
				utils.SAddVec(dst.used, candidate.Used)
				consumed[candidate.VMID] = true

				plan.Actions = append(plan.Actions, &model.MigrationAction{
					VMID:        candidate.VMID,
					Type:        candidate.Type,
					Source:      src.node.Name,
					Target:      dst.node.Name,
					SourceScore: sourceAfter,
					TargetScore: targetAfter,
				})

				accepted = true
				break search
			}
		}

		if !accepted {
			// A full pass over every surplus/deficit pair produced no
			// move; the remaining workloads are all mis-sized.
			break
		}
	}

	return plan
}

// chooseWorkload picks the workload whose move from src best closes the
// src-dst score gap: its size must not drop src below mean-tolerance, and
// among those the size closest to half the gap wins. Ties go to the lowest
// VMID (workloads are kept in VMID order, so the strict < holds the first
// seen).
func chooseWorkload(src, dst *workingNode, weights *mat.VecDense, analysis *Analysis, consumed map[int]bool) (*model.Workload, float64) {
	srcScore := src.score(weights)
	halfGap := (srcScore - dst.score(weights)) / 2
	floor := analysis.Mean - analysis.Tolerance

	var best *model.Workload
	var bestAfter float64
	bestDist := math.Inf(1)

	for _, workload := range src.workloads {
		if consumed[workload.VMID] {
			continue
		}

		size := WorkloadScoreOn(workload, src.node, weights)
		after := srcScore - size
		if after < floor {
			continue
		}

		dist := math.Abs(size - halfGap)
		if dist < bestDist {
			best = workload
			bestAfter = after
			bestDist = dist
		}
	}

	return best, bestAfter
}

// rank drains the working nodes still actionable for the given class
// through a heap ordered by distance from the mean, most distant first.
func rank(working map[string]*workingNode, weights *mat.VecDense, class NodeClass, analysis *Analysis) []*workingNode {
	heap := binaryheap.NewWith(func(a, b interface{}) int {
		na, nb := a.(*workingNode), b.(*workingNode)
		sa, sb := na.score(weights), nb.score(weights)

		if sa != sb {
			higherFirst := class == SURPLUS
			if (sa > sb) == higherFirst {
				return -1
			}
			return 1
		}

		return strings.Compare(na.node.Name, nb.node.Name)
	})

	for _, wn := range working {
		score := wn.score(weights)
		switch class {
		case SURPLUS:
			if score-analysis.Mean > analysis.Tolerance {
				heap.Push(wn)
			}
		case DEFICIT:
			if analysis.Mean-score > analysis.Tolerance {
				heap.Push(wn)
			}
		}
	}

	ranked := make([]*workingNode, 0, heap.Size())
	for {
		value, ok := heap.Pop()
		if !ok {
			break
		}
		ranked = append(ranked, value.(*workingNode))
	}

	return ranked
}
