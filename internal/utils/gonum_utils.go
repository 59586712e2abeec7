package utils

import "gonum.org/v1/gonum/mat"

func AddVec(a, b *mat.VecDense) *mat.VecDense {
	if a.Len() != b.Len() {
		panic("Two vectors should have the same length.")
	}

	ret := mat.NewVecDense(a.Len(), nil)
	ret.AddVec(a, b)

	return ret
}

func SAddVec(a, b *mat.VecDense) {
	a.AddVec(a, b)
}

func SubVec(a, b *mat.VecDense) *mat.VecDense {
	if a.Len() != b.Len() {
		panic("Two vectors should have the same length.")
	}

	ret := mat.NewVecDense(a.Len(), nil)
	ret.SubVec(a, b)

	return ret
}

func SSubVec(a, b *mat.VecDense) {
	a.SubVec(a, b)
}

// DivVecSat divides a by b elementwise. A component with zero or negative
// denominator is reported as fully saturated (1.0) instead of faulting.
func DivVecSat(a, b *mat.VecDense) *mat.VecDense {
	if a.Len() != b.Len() {
		panic("Two vectors should have the same length.")
	}

	ret := mat.NewVecDense(a.Len(), nil)
	for i := 0; i < a.Len(); i++ {
		if b.AtVec(i) <= 0 {
			ret.SetVec(i, 1)
			continue
		}
		ret.SetVec(i, a.AtVec(i)/b.AtVec(i))
	}

	return ret
}

func CloneVec(a *mat.VecDense) *mat.VecDense {
	ret := mat.NewVecDense(a.Len(), nil)
	ret.CopyVec(a)

	return ret
}
