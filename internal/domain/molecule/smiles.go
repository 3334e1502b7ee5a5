package molecule

import (
	"fmt"
	"strings"

	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

// BondOrder is the multiplicity of a bond.  Aromatic bonds are kept distinct
// so that ring systems hash the same way whatever Kekulé form was written.
type BondOrder int

const (
	BondSingle BondOrder = iota + 1
	BondDouble
	BondTriple
	BondQuadruple
	BondAromatic
)

// valence2 returns the bond's contribution to an atom's valence, doubled so
// aromatic bonds (1.5) stay integral.
func (o BondOrder) valence2() int {
	switch o {
	case BondDouble:
		return 4
	case BondTriple:
		return 6
	case BondQuadruple:
		return 8
	case BondAromatic:
		return 3
	default:
		return 2
	}
}

// Atom is a heavy atom of a parsed molecule.  Hydrogens are never explicit
// graph nodes; they are folded into HCount.
type Atom struct {
	Symbol    string
	AtomicNum int
	Aromatic  bool
	Charge    int
	Isotope   int
	HCount    int
	Bracket   bool
}

// Bond joins atoms A and B (indices into Graph.Atoms).
type Bond struct {
	A, B  int
	Order BondOrder
}

// Graph is the molecular graph produced by ParseSMILES.
type Graph struct {
	Atoms []Atom
	Bonds []Bond

	// adjacency[i] lists indices into Bonds touching atom i.
	adjacency [][]int
}

// Neighbor is an adjacent atom together with the bond that reaches it.
type Neighbor struct {
	Atom  int
	Order BondOrder
}

// Neighbors returns the atoms bonded to atom i.
func (g *Graph) Neighbors(i int) []Neighbor {
	out := make([]Neighbor, 0, len(g.adjacency[i]))
	for _, bi := range g.adjacency[i] {
		b := g.Bonds[bi]
		other := b.A
		if other == i {
			other = b.B
		}
		out = append(out, Neighbor{Atom: other, Order: b.Order})
	}
	return out
}

// Degree returns the number of heavy-atom neighbours of atom i.
func (g *Graph) Degree(i int) int { return len(g.adjacency[i]) }

// NumAtoms returns the heavy atom count.
func (g *Graph) NumAtoms() int { return len(g.Atoms) }

// InRing reports whether atom i is part of at least one cycle.
func (g *Graph) InRing(i int) bool {
	for _, bi := range g.adjacency[i] {
		if g.bondInRing(bi) {
			return true
		}
	}
	return false
}

// bondInRing checks whether the endpoints of bond bi stay connected once the
// bond itself is removed.
func (g *Graph) bondInRing(bi int) bool {
	b := g.Bonds[bi]
	seen := make([]bool, len(g.Atoms))
	stack := []int{b.A}
	seen[b.A] = true
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range g.adjacency[cur] {
			if e == bi {
				continue
			}
			nb := g.Bonds[e].A
			if nb == cur {
				nb = g.Bonds[e].B
			}
			if nb == b.B {
				return true
			}
			if !seen[nb] {
				seen[nb] = true
				stack = append(stack, nb)
			}
		}
	}
	return false
}

func (g *Graph) addAtom(a Atom) int {
	g.Atoms = append(g.Atoms, a)
	g.adjacency = append(g.adjacency, nil)
	return len(g.Atoms) - 1
}

func (g *Graph) addBond(a, b int, order BondOrder) {
	g.Bonds = append(g.Bonds, Bond{A: a, B: b, Order: order})
	idx := len(g.Bonds) - 1
	g.adjacency[a] = append(g.adjacency[a], idx)
	g.adjacency[b] = append(g.adjacency[b], idx)
}

var elements = strings.Fields(`H He Li Be B C N O F Ne Na Mg Al Si P S Cl Ar K Ca
	Sc Ti V Cr Mn Fe Co Ni Cu Zn Ga Ge As Se Br Kr Rb Sr Y Zr Nb Mo Tc Ru Rh Pd Ag Cd
	In Sn Sb Te I Xe Cs Ba La Ce Pr Nd Pm Sm Eu Gd Tb Dy Ho Er Tm Yb Lu Hf Ta W Re Os
	Ir Pt Au Hg Tl Pb Bi Po At Rn Fr Ra Ac Th Pa U Np Pu Am Cm Bk Cf Es Fm Md No Lr`)

var atomicNumbers = func() map[string]int {
	m := make(map[string]int, len(elements)+1)
	for i, s := range elements {
		m[s] = i + 1
	}
	m["*"] = 0
	return m
}()

// defaultValences lists the allowed valences of organic-subset atoms, used to
// derive implicit hydrogens.
var defaultValences = map[int][]int{
	5:  {3},
	6:  {4},
	7:  {3, 5},
	8:  {2},
	9:  {1},
	15: {3, 5},
	16: {2, 4, 6},
	17: {1},
	35: {1},
	53: {1},
}

type ringOpen struct {
	atom  int
	order BondOrder
	set   bool
}

type smilesParser struct {
	src   string
	pos   int
	g     *Graph
	rings map[int]ringOpen
}

// ParseSMILES reads a SMILES string into a heavy-atom Graph.  It understands
// the organic subset, bracket atoms (isotope, chirality, hydrogens, charge,
// atom class), branches, ring closures including %nn, all bond symbols and
// dot-disconnected fragments.  Stereo marks are accepted and ignored.
func ParseSMILES(smiles string) (*Graph, error) {
	s := strings.TrimSpace(smiles)
	if s == "" {
		return nil, errors.New(errors.ErrCodeMoleculeInvalidSMILES, "empty SMILES")
	}
	p := &smilesParser{src: s, g: &Graph{}, rings: map[int]ringOpen{}}
	if err := p.parse(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMoleculeInvalidSMILES, "invalid SMILES").WithDetail(s)
	}
	p.assignImplicitHydrogens()
	return p.g, nil
}

func (p *smilesParser) parse() error {
	prev := -1
	var branchStack []int
	var pending BondOrder
	pendingSet := false

	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '(':
			if prev < 0 {
				return fmt.Errorf("branch opened before any atom at %d", p.pos)
			}
			branchStack = append(branchStack, prev)
			p.pos++
		case c == ')':
			if len(branchStack) == 0 {
				return fmt.Errorf("unbalanced ')' at %d", p.pos)
			}
			if pendingSet {
				return fmt.Errorf("bond before ')' at %d", p.pos)
			}
			prev = branchStack[len(branchStack)-1]
			branchStack = branchStack[:len(branchStack)-1]
			p.pos++
		case c == '.':
			if pendingSet {
				return fmt.Errorf("bond before '.' at %d", p.pos)
			}
			prev = -1
			p.pos++
		case c == '-' || c == '=' || c == '#' || c == '$' || c == ':' || c == '/' || c == '\\':
			if pendingSet {
				return fmt.Errorf("consecutive bond symbols at %d", p.pos)
			}
			pending, pendingSet = bondFromSymbol(c), true
			p.pos++
		case c == '%' || (c >= '0' && c <= '9'):
			if prev < 0 {
				return fmt.Errorf("ring closure before any atom at %d", p.pos)
			}
			num, err := p.readRingNumber()
			if err != nil {
				return err
			}
			if err := p.ringClosure(num, prev, pending, pendingSet); err != nil {
				return err
			}
			pendingSet = false
		default:
			atom, err := p.readAtom()
			if err != nil {
				return err
			}
			idx := p.g.addAtom(atom)
			if prev >= 0 {
				order := pending
				if !pendingSet {
					order = implicitOrder(p.g.Atoms[prev], atom)
				}
				p.g.addBond(prev, idx, order)
			} else if pendingSet {
				return fmt.Errorf("bond symbol without a preceding atom at %d", p.pos)
			}
			pendingSet = false
			prev = idx
		}
	}

	if pendingSet {
		return fmt.Errorf("dangling bond at end of input")
	}
	if len(branchStack) > 0 {
		return fmt.Errorf("unclosed branch")
	}
	if len(p.rings) > 0 {
		return fmt.Errorf("%d unclosed ring bond(s)", len(p.rings))
	}
	if len(p.g.Atoms) == 0 {
		return fmt.Errorf("no atoms")
	}
	return nil
}

func bondFromSymbol(c byte) BondOrder {
	switch c {
	case '=':
		return BondDouble
	case '#':
		return BondTriple
	case '$':
		return BondQuadruple
	case ':':
		return BondAromatic
	default:
		return BondSingle
	}
}

func implicitOrder(a, b Atom) BondOrder {
	if a.Aromatic && b.Aromatic {
		return BondAromatic
	}
	return BondSingle
}

func (p *smilesParser) readRingNumber() (int, error) {
	c := p.src[p.pos]
	if c != '%' {
		p.pos++
		return int(c - '0'), nil
	}
	if p.pos+2 >= len(p.src) || !isDigit(p.src[p.pos+1]) || !isDigit(p.src[p.pos+2]) {
		return 0, fmt.Errorf("malformed %%nn ring closure at %d", p.pos)
	}
	n := int(p.src[p.pos+1]-'0')*10 + int(p.src[p.pos+2]-'0')
	p.pos += 3
	return n, nil
}

func (p *smilesParser) ringClosure(num, atom int, order BondOrder, orderSet bool) error {
	open, ok := p.rings[num]
	if !ok {
		p.rings[num] = ringOpen{atom: atom, order: order, set: orderSet}
		return nil
	}
	delete(p.rings, num)
	if open.atom == atom {
		return fmt.Errorf("ring %d closes on its own atom", num)
	}
	switch {
	case orderSet && open.set && order != open.order:
		return fmt.Errorf("ring %d has conflicting bond orders", num)
	case !orderSet && open.set:
		order = open.order
	case !orderSet:
		order = implicitOrder(p.g.Atoms[open.atom], p.g.Atoms[atom])
	}
	p.g.addBond(open.atom, atom, order)
	return nil
}

func (p *smilesParser) readAtom() (Atom, error) {
	if p.src[p.pos] == '[' {
		return p.readBracketAtom()
	}
	rest := p.src[p.pos:]
	for _, sym := range []string{"Cl", "Br"} {
		if strings.HasPrefix(rest, sym) {
			p.pos += 2
			return Atom{Symbol: sym, AtomicNum: atomicNumbers[sym]}, nil
		}
	}
	c := rest[0]
	switch c {
	case 'B', 'C', 'N', 'O', 'P', 'S', 'F', 'I':
		p.pos++
		return Atom{Symbol: string(c), AtomicNum: atomicNumbers[string(c)]}, nil
	case 'b', 'c', 'n', 'o', 'p', 's':
		p.pos++
		up := strings.ToUpper(string(c))
		return Atom{Symbol: up, AtomicNum: atomicNumbers[up], Aromatic: true}, nil
	case '*':
		p.pos++
		return Atom{Symbol: "*"}, nil
	}
	return Atom{}, fmt.Errorf("unexpected character %q at %d", c, p.pos)
}

func (p *smilesParser) readBracketAtom() (Atom, error) {
	end := strings.IndexByte(p.src[p.pos:], ']')
	if end < 0 {
		return Atom{}, fmt.Errorf("unclosed bracket atom at %d", p.pos)
	}
	body := p.src[p.pos+1 : p.pos+end]
	start := p.pos
	p.pos += end + 1

	a := Atom{Bracket: true}
	i := 0
	for i < len(body) && isDigit(body[i]) {
		a.Isotope = a.Isotope*10 + int(body[i]-'0')
		i++
	}

	sym, aromatic, n := readBracketSymbol(body[i:])
	if n == 0 {
		return Atom{}, fmt.Errorf("unknown element in bracket atom %q at %d", body, start)
	}
	a.Symbol, a.Aromatic, a.AtomicNum = sym, aromatic, atomicNumbers[sym]
	i += n

	// Chirality: @, @@, @TH1, @SP2, @OH12 ...
	if i < len(body) && body[i] == '@' {
		for i < len(body) && body[i] == '@' {
			i++
		}
		if i+1 < len(body) {
			switch body[i : i+2] {
			case "TH", "AL", "SP", "TB", "OH":
				i += 2
				for i < len(body) && isDigit(body[i]) {
					i++
				}
			}
		}
	}

	if i < len(body) && body[i] == 'H' {
		i++
		a.HCount = 1
		if i < len(body) && isDigit(body[i]) {
			a.HCount = int(body[i] - '0')
			i++
		}
	}

	if i < len(body) && (body[i] == '+' || body[i] == '-') {
		sign := 1
		if body[i] == '-' {
			sign = -1
		}
		c := body[i]
		i++
		mag := 1
		if i < len(body) && isDigit(body[i]) {
			mag = 0
			for i < len(body) && isDigit(body[i]) {
				mag = mag*10 + int(body[i]-'0')
				i++
			}
		} else {
			for i < len(body) && body[i] == c {
				mag++
				i++
			}
		}
		a.Charge = sign * mag
	}

	if i < len(body) && body[i] == ':' {
		i++
		for i < len(body) && isDigit(body[i]) {
			i++
		}
	}
	if i != len(body) {
		return Atom{}, fmt.Errorf("unexpected %q in bracket atom %q", body[i:], body)
	}
	return a, nil
}

func readBracketSymbol(s string) (string, bool, int) {
	if s == "" {
		return "", false, 0
	}
	if s[0] == '*' {
		return "*", false, 1
	}
	for _, arom := range []string{"se", "as", "te"} {
		if strings.HasPrefix(s, arom) {
			return strings.ToUpper(arom[:1]) + arom[1:], true, 2
		}
	}
	switch s[0] {
	case 'b', 'c', 'n', 'o', 'p', 's':
		return strings.ToUpper(s[:1]), true, 1
	}
	if s[0] < 'A' || s[0] > 'Z' {
		return "", false, 0
	}
	if len(s) > 1 && s[1] >= 'a' && s[1] <= 'z' {
		if _, ok := atomicNumbers[s[:2]]; ok {
			return s[:2], false, 2
		}
	}
	if _, ok := atomicNumbers[s[:1]]; ok {
		return s[:1], false, 1
	}
	return "", false, 0
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// assignImplicitHydrogens fills HCount for organic-subset atoms from the
// lowest default valence that accommodates their explicit bonds.
func (p *smilesParser) assignImplicitHydrogens() {
	g := p.g
	for i := range g.Atoms {
		a := &g.Atoms[i]
		if a.Bracket {
			continue
		}
		vals, ok := defaultValences[a.AtomicNum]
		if !ok {
			continue
		}
		sum2 := 0
		for _, nb := range g.Neighbors(i) {
			sum2 += nb.Order.valence2()
		}
		used := (sum2 + 1) / 2
		for _, v := range vals {
			if v >= used {
				a.HCount = v - used
				break
			}
		}
	}
}
