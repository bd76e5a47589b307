package verify

import "fmt"

// LinearityCtx tracks per-variable ownership state during one atom's body
// evaluation: alive/consumed, and borrow counts with borrower names for
// diagnostics. Ported structurally from
// original_source/src/verification.rs's LinearityCtx (register/consume/
// borrow/release_borrow/check_alive), which this gate's wording follows
// almost verbatim.
type LinearityCtx struct {
	alive      map[string]bool
	borrowCnt  map[string]int
	borrowers  map[string][]string
	violations []string
}

func NewLinearityCtx() *LinearityCtx {
	return &LinearityCtx{
		alive:     make(map[string]bool),
		borrowCnt: make(map[string]int),
		borrowers: make(map[string][]string),
	}
}

// Register begins tracking name as alive with no active borrows.
func (l *LinearityCtx) Register(name string) {
	l.alive[name] = true
	l.borrowCnt[name] = 0
}

// Consume marks name as consumed (ownership moved out). Consuming a
// currently-borrowed variable, or a variable already consumed, is recorded
// as a violation and returned as an error. A name never registered is
// assumed to be an ordinary (non-tracked) value and is accepted silently.
func (l *LinearityCtx) Consume(name string) error {
	if count, ok := l.borrowCnt[name]; ok && count > 0 {
		msg := fmt.Sprintf("cannot consume %q: currently borrowed by %v (%d active)", name, l.borrowers[name], count)
		l.violations = append(l.violations, msg)

		return fmt.Errorf("%s", msg)
	}

	alive, tracked := l.alive[name]
	if !tracked {
		return nil
	}

	if !alive {
		msg := fmt.Sprintf("double-free: %q has already been consumed", name)
		l.violations = append(l.violations, msg)

		return fmt.Errorf("%s", msg)
	}

	l.alive[name] = false

	return nil
}

// Borrow registers borrowerName as holding a read-only borrow of
// ownerName. Borrowing an already-consumed variable is a use-after-free.
func (l *LinearityCtx) Borrow(ownerName, borrowerName string) error {
	if alive, tracked := l.alive[ownerName]; tracked && !alive {
		msg := fmt.Sprintf("cannot borrow %q: already consumed (use-after-free)", ownerName)
		l.violations = append(l.violations, msg)

		return fmt.Errorf("%s", msg)
	}

	l.borrowCnt[ownerName]++
	l.borrowers[ownerName] = append(l.borrowers[ownerName], borrowerName)

	return nil
}

// ReleaseBorrow ends borrowerName's borrow of ownerName.
func (l *LinearityCtx) ReleaseBorrow(ownerName, borrowerName string) {
	if l.borrowCnt[ownerName] > 0 {
		l.borrowCnt[ownerName]--
	}

	kept := l.borrowers[ownerName][:0]

	for _, b := range l.borrowers[ownerName] {
		if b != borrowerName {
			kept = append(kept, b)
		}
	}

	l.borrowers[ownerName] = kept
}

// CheckAlive records a use-after-free violation if name has already been
// consumed.
func (l *LinearityCtx) CheckAlive(name string) error {
	if alive, tracked := l.alive[name]; tracked && !alive {
		msg := fmt.Sprintf("use-after-free: %q has been consumed and is no longer valid", name)
		l.violations = append(l.violations, msg)

		return fmt.Errorf("%s", msg)
	}

	return nil
}

func (l *LinearityCtx) IsBorrowed(name string) bool {
	return l.borrowCnt[name] > 0
}

func (l *LinearityCtx) Violations() []string { return l.violations }

func (l *LinearityCtx) HasViolations() bool { return len(l.violations) > 0 }

func (l *LinearityCtx) IsAlive(name string) bool {
	alive, tracked := l.alive[name]
	return !tracked || alive
}
