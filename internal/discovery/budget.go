package discovery

// ScanBudget bounds how many heuristic matches one parent-root scope may
// keep. Budgets only decrease; a directory is charged at most once per
// run no matter how many tokens or scopes match it.
type ScanBudget struct {
	remaining int
}

// NewScanBudget creates a budget of n matches.
func NewScanBudget(n int) *ScanBudget {
	return &ScanBudget{remaining: n}
}

// Consume takes one charge, reporting whether any budget was left.
func (b *ScanBudget) Consume() bool {
	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}

// Remaining returns the charges left.
func (b *ScanBudget) Remaining() int {
	return b.remaining
}
