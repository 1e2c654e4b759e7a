package escrow

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efreitasn/commandledger/internal/domain"
	"github.com/efreitasn/commandledger/internal/store"
)

func newTestVault() (*Vault, *store.ReceiptStore) {
	rs := store.NewReceiptStore()
	return NewVault(rs, slog.New(slog.NewTextHandler(io.Discard, nil))), rs
}

func TestVault_Refund(t *testing.T) {
	v, rs := newTestVault()

	r := v.Refund("commander", u("10"), "command_1", "insufficient_deposit")
	require.NotNil(t, r)
	assert.NotEmpty(t, r.ReceiptID)
	assert.Equal(t, domain.AccountID("commander"), r.AccountID)
	assert.Equal(t, "10", r.Amount.String())
	assert.Equal(t, "command_1", r.CommandID)
	assert.Equal(t, "insufficient_deposit", r.Reason)

	got := rs.ListByAccount("commander")
	require.Len(t, got, 1)
	assert.Equal(t, r.ReceiptID, got[0].ReceiptID)
}

func TestVault_Refund_ZeroAmountIssuesNothing(t *testing.T) {
	v, rs := newTestVault()

	assert.Nil(t, v.Refund("commander", domain.U128{}, "command_1", "duplicate_id"))
	assert.Empty(t, rs.ListByAccount("commander"))
}

func TestVault_HoldAndRelease(t *testing.T) {
	v, rs := newTestVault()
	c := &domain.Command{CommandID: "command_1", OwnerID: "commander", Deposit: u("70")}

	v.Hold(c.CommandID, c.Deposit)
	assert.Equal(t, "70", v.Held("command_1").String())

	r := v.Release(c, "cancelled")
	require.NotNil(t, r)
	assert.Equal(t, "70", r.Amount.String())
	assert.True(t, v.Held("command_1").IsZero())
	assert.Len(t, rs.ListByAccount("commander"), 1)
}

func TestVault_ReceiptIDsAreUnique(t *testing.T) {
	v, _ := newTestVault()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		r := v.Refund("a", u("1"), "", "test")
		require.False(t, seen[r.ReceiptID], "duplicate receipt id %s", r.ReceiptID)
		seen[r.ReceiptID] = true
	}
}
