package utils

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/hash"
)

// CommitmentTree is the Expand batch tree: leaves are MiMC digests of the
// per-record commitments, inner nodes MiMC(left, right). It is built and
// opened natively here and recomputed inside the Expand circuit from the
// authentication path; both faces share the leaf/node hashing rule, so no
// domain prefixes are introduced on either side.
type CommitmentTree struct {
	depth  int
	levels [][]fr.Element // levels[0] = leaf digests, last level = root
}

// NewCommitmentTree hashes the 2^depth leaf commitments into a full tree.
func NewCommitmentTree(leaves []fr.Element, depth int) (*CommitmentTree, error) {
	if len(leaves) != 1<<depth {
		return nil, fmt.Errorf("%w: %d leaves for depth %d", ErrParameterMismatch, len(leaves), depth)
	}
	level := make([]fr.Element, len(leaves))
	for i, leaf := range leaves {
		level[i] = hashLeaf(leaf)
	}
	levels := [][]fr.Element{level}
	for len(level) > 1 {
		next := make([]fr.Element, len(level)/2)
		for i := range next {
			next[i] = hashNode(level[2*i], level[2*i+1])
		}
		levels = append(levels, next)
		level = next
	}
	return &CommitmentTree{depth: depth, levels: levels}, nil
}

// Root returns the public tree digest sent in phase 1.
func (t *CommitmentTree) Root() fr.Element {
	top := t.levels[len(t.levels)-1]
	return top[0]
}

// Path returns the authentication path (bottom-up sibling digests) for the
// given leaf index.
func (t *CommitmentTree) Path(index int) ([]fr.Element, error) {
	if index < 0 || index >= 1<<t.depth {
		return nil, fmt.Errorf("%w: leaf index %d for depth %d", ErrMerklePathInvalid, index, t.depth)
	}
	path := make([]fr.Element, t.depth)
	for lvl := 0; lvl < t.depth; lvl++ {
		path[lvl] = t.levels[lvl][index^1]
		index >>= 1
	}
	return path, nil
}

// VerifyPath recomputes the root from a leaf commitment and its path. The
// client uses it as a sanity check before proving; the relation itself is
// enforced in-circuit.
func VerifyPath(root fr.Element, leaf fr.Element, index int, path []fr.Element) bool {
	sum := hashLeaf(leaf)
	for _, sibling := range path {
		if index&1 == 1 {
			sum = hashNode(sibling, sum)
		} else {
			sum = hashNode(sum, sibling)
		}
		index >>= 1
	}
	return sum.Equal(&root)
}

func hashLeaf(c fr.Element) fr.Element {
	h := hash.MIMC_BN254.New()
	h.Write(c.Marshal())
	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}

func hashNode(l, r fr.Element) fr.Element {
	h := hash.MIMC_BN254.New()
	h.Write(l.Marshal())
	h.Write(r.Marshal())
	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}
