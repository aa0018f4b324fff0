package ir

// Structural analyses computed once per function at Finalize time:
// dominator sets, postdominator sets, and the control-dependence
// relation derived from them. The engine only ever reads these, so the
// straightforward iterative dataflow formulation is enough.

type domTree struct {
	sets map[*Block]map[*Block]bool
}

func (d *domTree) dominates(a, b *Block) bool {
	if a == nil || b == nil {
		return false
	}
	return d.sets[b][a]
}

// computeDominators runs the classic iterative dominator dataflow
// from the entry block. Blocks unreachable from the entry dominate
// only themselves.
func computeDominators(f *Function) *domTree {
	return &domTree{sets: iterateDomSets(
		f.Blocks,
		rootSet{f.Entry(): true},
		func(b *Block) []*Block { return b.Preds },
	)}
}

// computePostdominators runs the same dataflow on the reversed graph.
// Every block without successors (or with a return terminator) acts as
// an exit root, which stands in for the virtual exit node.
func computePostdominators(f *Function) *domTree {
	roots := rootSet{}
	for _, b := range f.Blocks {
		if len(b.Succs) == 0 {
			roots[b] = true
		}
	}
	return &domTree{sets: iterateDomSets(
		f.Blocks,
		roots,
		func(b *Block) []*Block { return b.Succs },
	)}
}

type rootSet map[*Block]bool

// iterateDomSets computes, for every block, the set of blocks that
// (post)dominate it. inEdges yields the dataflow predecessors:
// CFG predecessors for dominance, successors for postdominance.
func iterateDomSets(blocks []*Block, roots rootSet, inEdges func(*Block) []*Block) map[*Block]map[*Block]bool {
	sets := make(map[*Block]map[*Block]bool, len(blocks))
	for _, b := range blocks {
		if roots[b] {
			sets[b] = map[*Block]bool{b: true}
			continue
		}
		// Start from the full set and shrink by intersection.
		all := make(map[*Block]bool, len(blocks))
		for _, x := range blocks {
			all[x] = true
		}
		sets[b] = all
	}

	for changed := true; changed; {
		changed = false
		for _, b := range blocks {
			if roots[b] {
				continue
			}

			var inter map[*Block]bool
			reached := false
			for _, p := range inEdges(b) {
				if inter == nil {
					inter = cloneSet(sets[p])
					reached = true
					continue
				}
				for x := range inter {
					if !sets[p][x] {
						delete(inter, x)
					}
				}
			}
			if !reached {
				// No edges reach this block: it relates only to itself.
				inter = map[*Block]bool{}
			}
			inter[b] = true

			if !sameSet(inter, sets[b]) {
				sets[b] = inter
				changed = true
			}
		}
	}

	return sets
}

func cloneSet(s map[*Block]bool) map[*Block]bool {
	out := make(map[*Block]bool, len(s))
	for k := range s {
		out[k] = true
	}
	return out
}

func sameSet(a, b map[*Block]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// computeControlDeps derives the direct control-dependence relation
// (Ferrante-Ottenstein-Warren): X depends on branch block A when X
// postdominates some successor of A but does not postdominate A
// itself.
func computeControlDeps(f *Function, pdom *domTree) map[*Block][]*Block {
	deps := make(map[*Block][]*Block)
	have := make(map[*Block]map[*Block]bool)

	for _, a := range f.Blocks {
		if len(a.Succs) < 2 {
			continue
		}
		for _, succ := range a.Succs {
			for _, x := range f.Blocks {
				if !pdom.dominates(x, succ) || pdom.dominates(x, a) {
					continue
				}
				if have[x] == nil {
					have[x] = make(map[*Block]bool)
				}
				if have[x][a] {
					continue
				}
				have[x][a] = true
				deps[x] = append(deps[x], a)
			}
		}
	}

	return deps
}
