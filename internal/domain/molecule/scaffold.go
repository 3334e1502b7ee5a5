package molecule

import (
	"encoding/binary"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// MurckoScaffold returns the Bemis-Murcko framework of g: its ring systems
// and the linkers between them, found by repeatedly pruning terminal atoms.
// An acyclic molecule has an empty scaffold.
func MurckoScaffold(g *Graph) *Graph {
	n := g.NumAtoms()
	alive := make([]bool, n)
	degree := make([]int, n)
	for i := 0; i < n; i++ {
		alive[i] = true
		degree[i] = g.Degree(i)
	}

	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if degree[i] <= 1 {
			queue = append(queue, i)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if !alive[cur] {
			continue
		}
		alive[cur] = false
		for _, nb := range g.Neighbors(cur) {
			if !alive[nb.Atom] {
				continue
			}
			degree[nb.Atom]--
			if degree[nb.Atom] == 1 {
				queue = append(queue, nb.Atom)
			}
		}
	}

	out := &Graph{}
	remap := make([]int, n)
	for i := 0; i < n; i++ {
		remap[i] = -1
		if alive[i] {
			remap[i] = out.addAtom(g.Atoms[i])
		}
	}
	for _, b := range g.Bonds {
		if alive[b.A] && alive[b.B] {
			out.addBond(remap[b.A], remap[b.B], b.Order)
		}
	}
	return out
}

// ScaffoldKey returns a canonical identifier of the Murcko scaffold of smiles.
// Molecules sharing a scaffold share a key; acyclic molecules map to "".
func ScaffoldKey(smiles string) (string, error) {
	g, err := ParseSMILES(smiles)
	if err != nil {
		return "", err
	}
	return graphKey(MurckoScaffold(g)), nil
}

// graphKey hashes g with Weisfeiler-Lehman refinement over element,
// aromaticity, degree and bond order.  Hydrogen counts are ignored so that
// substitution points do not split a scaffold.
func graphKey(g *Graph) string {
	n := g.NumAtoms()
	if n == 0 {
		return ""
	}
	labels := make([]uint64, n)
	var buf [12]byte
	for i, a := range g.Atoms {
		binary.LittleEndian.PutUint32(buf[0:], uint32(a.AtomicNum))
		binary.LittleEndian.PutUint32(buf[4:], uint32(g.Degree(i)))
		buf[8] = 0
		if a.Aromatic {
			buf[8] = 1
		}
		labels[i] = xxhash.Sum64(buf[:9])
	}

	next := make([]uint64, n)
	scratch := make([]byte, 0, 64)
	for round := 0; round < n; round++ {
		for i := 0; i < n; i++ {
			nbs := g.Neighbors(i)
			keys := make([]uint64, len(nbs))
			for k, nb := range nbs {
				keys[k] = labels[nb.Atom]*31 + uint64(nb.Order)
			}
			sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })
			scratch = binary.LittleEndian.AppendUint64(scratch[:0], labels[i])
			for _, k := range keys {
				scratch = binary.LittleEndian.AppendUint64(scratch, k)
			}
			next[i] = xxhash.Sum64(scratch)
		}
		labels, next = next, labels
	}

	sorted := append([]uint64(nil), labels...)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a] < sorted[b] })
	scratch = scratch[:0]
	for _, l := range sorted {
		scratch = binary.LittleEndian.AppendUint64(scratch, l)
	}
	return strconv.Itoa(n) + ":" + strconv.FormatUint(xxhash.Sum64(scratch), 16)
}
