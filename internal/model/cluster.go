package model

import (
	"fmt"
	"sort"
)

// ClusterSnapshot is one atomic view of the cluster: every read happens
// before any planning decision. Nodes and workloads in it are never
// mutated after capture; the planner works on projected copies.
type ClusterSnapshot struct {
	Nodes map[string]*Node
	// Workloads maps a node name to the workloads hosted there, ordered
	// by ascending VMID.
	Workloads map[string][]*Workload
}

func NewClusterSnapshot() *ClusterSnapshot {
	return &ClusterSnapshot{
		Nodes:     make(map[string]*Node),
		Workloads: make(map[string][]*Workload),
	}
}

func (s *ClusterSnapshot) AddNode(n *Node) error {
	if _, ok := s.Nodes[n.Name]; ok {
		return fmt.Errorf("node %s captured twice", n.Name)
	}

	s.Nodes[n.Name] = n
	return nil
}

func (s *ClusterSnapshot) AddWorkload(w *Workload) error {
	if _, ok := s.Nodes[w.Node]; !ok {
		return fmt.Errorf("workload %d refers to unknown node %s", w.VMID, w.Node)
	}

	s.Workloads[w.Node] = append(s.Workloads[w.Node], w)
	return nil
}

// Seal orders each node's workloads by VMID. Collectors call it once after
// the last read so the planner's tie-breaks are deterministic.
func (s *ClusterSnapshot) Seal() {
	for _, workloads := range s.Workloads {
		sort.Slice(workloads, func(i, j int) bool {
			return workloads[i].VMID < workloads[j].VMID
		})
	}
}

// NodeNames returns the node names in lexical order.
func (s *ClusterSnapshot) NodeNames() []string {
	names := make([]string, 0, len(s.Nodes))
	for name := range s.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func (s *ClusterSnapshot) WorkloadCount() int {
	count := 0
	for _, workloads := range s.Workloads {
		count += len(workloads)
	}

	return count
}
