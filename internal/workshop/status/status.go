// Package status maps the free-text status labels returned by the backend onto
// the four canonical service-order states shown to operators.
package status

import (
	"strings"

	"golang.org/x/text/cases"
)

// Canonical is one of the four normalized, UI-facing order states.
type Canonical string

const (
	Pending    Canonical = "Pendente"
	InProgress Canonical = "Em Andamento"
	Done       Canonical = "Concluída"
	Canceled   Canonical = "Cancelada"
)

// Canonicals returns every canonical state in display order.
func Canonicals() []Canonical {
	return []Canonical{Pending, InProgress, Done, Canceled}
}

func (c Canonical) String() string { return string(c) }

// IsTerminal reports whether no further work can happen on the order.
func (c Canonical) IsTerminal() bool {
	return c == Done || c == Canceled
}

type rule struct {
	tokens []string
	result Canonical
}

// rules are evaluated top to bottom; the first rule with a matching token wins.
var rules = []rule{
	{tokens: []string{"waitt", "payment"}, result: InProgress},
	{tokens: []string{"pend", "await", "approval"}, result: Pending},
	{tokens: []string{"repair"}, result: InProgress},
	{tokens: []string{"concl", "finish", "completed", "final"}, result: Done},
	{tokens: []string{"cancel"}, result: Canceled},
}

// Normalize maps a raw status label onto its canonical state. Matching is a
// case-insensitive substring search; unrecognized non-empty labels are
// treated as in progress.
func Normalize(raw string) Canonical {
	folded := fold(raw)
	if folded == "" {
		return Pending
	}
	for _, r := range rules {
		if containsAny(folded, r.tokens) {
			return r.result
		}
	}
	return InProgress
}

// IsPaymentOrFinalized reports whether the raw label says the order is waiting
// for payment or already finalized. Work can not be started or resumed then.
func IsPaymentOrFinalized(raw string) bool {
	folded := fold(raw)
	return containsAny(folded, []string{"waitt", "payment", "finalized"})
}

func fold(raw string) string {
	return cases.Fold().String(strings.TrimSpace(raw))
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
