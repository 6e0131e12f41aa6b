package service

import (
	"strings"

	"github.com/m-mizutani/iocfeed"
)

// Ledger decides which values should be committed in a run. It's not goroutine safe; Decide must
// become an atomic check-and-insert if objects are processed concurrently.
type Ledger struct {
	seen     map[string]struct{}
	existing map[string]struct{}
	admitted []string
}

func NewLedger() *Ledger {
	return &Ledger{
		seen:     make(map[string]struct{}),
		existing: make(map[string]struct{}),
	}
}

// Seed loads values already on the destination event
func (x *Ledger) Seed(values []string) {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		x.existing[v] = struct{}{}
	}
}

// Admit returns true if value is not empty and seen neither in this run nor on the event.
// Admitted value is recorded as seen immediately.
func (x *Ledger) Admit(value string) bool {
	ok, _ := x.Decide(value)
	return ok
}

// Decide is same as Admit, and also returns outcome for rejected value.
func (x *Ledger) Decide(value string) (bool, iocfeed.CommitOutcome) {
	if strings.TrimSpace(value) == "" {
		return false, iocfeed.CommitOutcome{Kind: iocfeed.SkippedEmpty}
	}
	if _, ok := x.existing[value]; ok {
		return false, iocfeed.CommitOutcome{Kind: iocfeed.SkippedDuplicate, Reason: "already on event"}
	}
	if _, ok := x.seen[value]; ok {
		return false, iocfeed.CommitOutcome{Kind: iocfeed.SkippedDuplicate, Reason: "already seen in run"}
	}

	x.seen[value] = struct{}{}
	x.admitted = append(x.admitted, value)
	return true, iocfeed.CommitOutcome{}
}

// Admitted returns admitted values in discovery order
func (x *Ledger) Admitted() []string {
	return append([]string{}, x.admitted...)
}
