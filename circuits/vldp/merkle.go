package vldp

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// VerifyMerklePath recomputes the batch tree root from a leaf commitment,
// its authentication path and the public leaf index, and asserts equality
// with the public root. Child order per level is selected by the index bits
// (little-endian), so the index is bound to the opened position. Mirrors
// utils.CommitmentTree.
func VerifyMerklePath(api frontend.API, root, leaf, index frontend.Variable, path []frontend.Variable) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	h.Write(leaf)
	sum := h.Sum()

	if len(path) == 0 {
		// single-leaf batch: the root is the leaf digest itself
		api.AssertIsEqual(index, 0)
		api.AssertIsEqual(sum, root)
		return nil
	}

	indexBits := api.ToBinary(index, len(path))
	for i, sibling := range path {
		left := api.Select(indexBits[i], sibling, sum)
		right := api.Select(indexBits[i], sum, sibling)
		h.Reset()
		h.Write(left, right)
		sum = h.Sum()
	}
	api.AssertIsEqual(sum, root)
	return nil
}
