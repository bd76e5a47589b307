package verify

import "github.com/mumei-lang/mumei/internal/smt"

// termMentionsTainted walks t for any symbol name present in tainted — used
// by Gate 8 to flag safety obligations that rest, even transitively,
// on a value produced by an unverified atom.
func termMentionsTainted(t smt.Term, tainted map[string]bool) string {
	switch n := t.(type) {
	case *smt.Sym:
		if tainted[n.Name] {
			return n.Name
		}

		return ""
	case *smt.Unary:
		return termMentionsTainted(n.X, tainted)
	case *smt.Binary:
		if src := termMentionsTainted(n.L, tainted); src != "" {
			return src
		}

		return termMentionsTainted(n.R, tainted)
	case *smt.Ite:
		if src := termMentionsTainted(n.Cond, tainted); src != "" {
			return src
		}

		if src := termMentionsTainted(n.Then, tainted); src != "" {
			return src
		}

		return termMentionsTainted(n.Else, tainted)
	case *smt.Select:
		if src := termMentionsTainted(n.Arr, tainted); src != "" {
			return src
		}

		return termMentionsTainted(n.Idx, tainted)
	case *smt.Bounded:
		return termMentionsTainted(n.Pred, tainted)
	default:
		return ""
	}
}
