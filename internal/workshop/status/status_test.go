package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_BackendLabels(t *testing.T) {
	cases := map[string]Canonical{
		"":                  Pending,
		"   ":               Pending,
		"Pendente":          Pending,
		"Awaiting Approval": Pending,
		"In Repair":         InProgress,
		"Waitting Payment":  InProgress,
		"Finalized":         Done,
		"Finished":          Done,
		"Completed":         Done,
		"Concluída":         Done,
		"Canceled":          Canceled,
		"Cancelada":         Canceled,
		"Em Andamento":      InProgress,
		"something else":    InProgress,
	}
	for raw, want := range cases {
		assert.Equal(t, want, Normalize(raw), "raw=%q", raw)
	}
}

func TestNormalize_CaseInsensitive(t *testing.T) {
	assert.Equal(t, Pending, Normalize("PENDENTE"))
	assert.Equal(t, InProgress, Normalize("in REPAIR"))
	assert.Equal(t, Done, Normalize("CONCLUÍDA"))
	assert.Equal(t, Canceled, Normalize("CANCELED"))
}

func TestNormalize_PaymentBeatsPending(t *testing.T) {
	for _, raw := range []string{
		"Waitting Payment",
		"WAITTING PAYMENT",
		"pending payment",
		"Payment pending approval",
		"awaiting payment",
	} {
		assert.Equal(t, InProgress, Normalize(raw), "raw=%q", raw)
	}
}

func TestNormalize_RepairBeforeFinal(t *testing.T) {
	// "repair" is matched before the completion tokens.
	assert.Equal(t, InProgress, Normalize("final repair"))
}

func TestIsPaymentOrFinalized(t *testing.T) {
	assert.True(t, IsPaymentOrFinalized("Waitting Payment"))
	assert.True(t, IsPaymentOrFinalized("finalized"))
	assert.False(t, IsPaymentOrFinalized("In Repair"))
	assert.False(t, IsPaymentOrFinalized(""))
}

func TestCanonical_IsTerminal(t *testing.T) {
	assert.True(t, Done.IsTerminal())
	assert.True(t, Canceled.IsTerminal())
	assert.False(t, Pending.IsTerminal())
	assert.False(t, InProgress.IsTerminal())
	assert.Len(t, Canonicals(), 4)
}
