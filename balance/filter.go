package balance

import (
	"github.com/padthaitofuhot/pve-cslb/internal/config"
	"github.com/padthaitofuhot/pve-cslb/internal/model"
	"github.com/padthaitofuhot/pve-cslb/internal/utils"
)

// Rules holds the include/exclude sets for nodes, VMIDs and workload
// types. An explicit include always overrides a broader exclude.
type Rules struct {
	excludeNodes map[string]bool
	includeNodes map[string]bool
	excludeVMIDs map[int]bool
	includeVMIDs map[int]bool
	excludeTypes map[model.GuestType]bool
	includeTypes map[model.GuestType]bool
}

func NewRules(cfg config.Config) Rules {
	toTypes := func(ss []string) map[model.GuestType]bool {
		ret := make(map[model.GuestType]bool, len(ss))
		for _, s := range ss {
			ret[model.GuestType(s)] = true
		}
		return ret
	}

	return Rules{
		excludeNodes: utils.SliceToSet(cfg.ExcludeNodes),
		includeNodes: utils.SliceToSet(cfg.IncludeNodes),
		excludeVMIDs: utils.SliceToSet(cfg.ExcludeVMIDs),
		includeVMIDs: utils.SliceToSet(cfg.IncludeVMIDs),
		excludeTypes: toTypes(cfg.ExcludeTypes),
		includeTypes: toTypes(cfg.IncludeTypes),
	}
}

func (r Rules) NodeEligible(name string) bool {
	if r.includeNodes[name] {
		return true
	}

	return !r.excludeNodes[name]
}

func (r Rules) WorkloadEligible(w *model.Workload) bool {
	if r.includeVMIDs[w.VMID] {
		return true
	}
	if r.excludeVMIDs[w.VMID] {
		return false
	}
	if r.excludeTypes[w.Type] && !r.includeTypes[w.Type] {
		return false
	}

	return true
}

// Filter derives the eligibility flags of a snapshot. A workload on an
// excluded node is unusable even when individually included: the node is
// not a migration source. An individually excluded workload stays attached
// to its node, so node utilization still reflects it; it just cannot be
// picked for migration. Pure with respect to everything but the flags.
func Filter(s *model.ClusterSnapshot, r Rules) {
	for name, node := range s.Nodes {
		node.Eligible = r.NodeEligible(name)

		for _, workload := range s.Workloads[name] {
			workload.Eligible = node.Eligible && r.WorkloadEligible(workload)
		}
	}
}
