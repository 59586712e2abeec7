package model

import "gonum.org/v1/gonum/mat"

// Resource vector layout shared by every capacity/usage figure in the
// system: index 0 is CPU in cores, index 1 is memory in bytes.
const (
	ResourceCPU = iota
	ResourceMem

	ResourceCount
)

func NewResourceVec(cpu, mem float64) *mat.VecDense {
	return mat.NewVecDense(ResourceCount, []float64{cpu, mem})
}

// GuestType distinguishes the two migratable workload classes of a PVE
// cluster.
type GuestType string

const (
	GuestLXC  GuestType = "lxc"
	GuestQEMU GuestType = "qemu"
)

type Node struct {
	Name     string
	Capacity *mat.VecDense
	Used     *mat.VecDense
	Eligible bool
}

type Workload struct {
	VMID int
	Name string
	Type GuestType
	// Node is the name of the current host at snapshot time.
	Node     string
	Used     *mat.VecDense
	Eligible bool
}
