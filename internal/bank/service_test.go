package bank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftdesk/craftdesk/internal/models"
	"github.com/craftdesk/craftdesk/internal/repository"
	"github.com/craftdesk/craftdesk/internal/repository/repositorytest"
)

func TestSplitWithRecipients(t *testing.T) {
	banks := repositorytest.NewBanks()
	cuts := repositorytest.NewCuts()
	require.NoError(t, cuts.Set("guild-1", "user-owner", 60))
	require.NoError(t, cuts.Set("guild-1", "user-admin", 40))

	svc := NewService(banks, cuts, 15)
	inv := &models.Invoice{ID: "invoice-1", Amount: 200, Tax: 0.1}

	res, err := svc.Split("guild-1", "user-free", inv, 7)
	require.NoError(t, err)

	// The split is over the principal; the handling fee is not revenue.
	assert.InDelta(t, 170, res.FreelancerAmount, 1e-9)
	assert.InDelta(t, 30, res.ServiceAmount, 1e-9)
	assert.InDelta(t, 18, res.RecipientCredits["user-owner"], 1e-9)
	assert.InDelta(t, 12, res.RecipientCredits["user-admin"], 1e-9)

	free, err := svc.Balance("user-free")
	require.NoError(t, err)
	assert.InDelta(t, 170, free, 1e-9)

	txs, err := banks.TransactionsByUser("user-free", 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, models.TransactionCommissionRevenue, txs[0].Type)
	assert.Contains(t, txs[0].Note, "commission #7")

	txs, err = banks.TransactionsByUser("user-owner", 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, models.TransactionServiceCutRevenue, txs[0].Type)
}

func TestSplitWithoutRecipients(t *testing.T) {
	svc := NewService(repositorytest.NewBanks(), repositorytest.NewCuts(), 15)
	inv := &models.Invoice{ID: "invoice-1", Amount: 100}

	res, err := svc.Split("guild-1", "user-free", inv, 1)
	require.NoError(t, err)
	assert.InDelta(t, 85, res.FreelancerAmount, 1e-9)
	assert.Empty(t, res.RecipientCredits)

	free, err := svc.Balance("user-free")
	require.NoError(t, err)
	assert.InDelta(t, 85, free, 1e-9)
}

func TestSplitRequiresFreelancer(t *testing.T) {
	svc := NewService(repositorytest.NewBanks(), repositorytest.NewCuts(), 15)

	_, err := svc.Split("guild-1", "", &models.Invoice{Amount: 100}, 1)
	require.Error(t, err)
}

func TestCutSharesMustNotOverflow(t *testing.T) {
	cuts := repositorytest.NewCuts()
	require.NoError(t, cuts.Set("guild-1", "user-owner", 70))

	err := cuts.Set("guild-1", "user-admin", 40)
	assert.ErrorIs(t, err, repository.ErrCutOverflow)

	// Replacing an existing share is measured against the others, not
	// against the stale own share.
	require.NoError(t, cuts.Set("guild-1", "user-owner", 90))
	assert.ErrorIs(t, cuts.Set("guild-1", "user-owner", 101), repository.ErrCutOverflow)
	assert.ErrorIs(t, cuts.Set("guild-1", "user-owner", 0), repository.ErrCutOverflow)
}

func TestWithdraw(t *testing.T) {
	banks := repositorytest.NewBanks()
	svc := NewService(banks, repositorytest.NewCuts(), 15)

	_, err := svc.Withdraw("user-free")
	require.Error(t, err, "empty balance cannot be withdrawn")

	require.NoError(t, banks.Credit("user-free", 120, models.TransactionCommissionRevenue, "test"))
	amount, err := svc.Withdraw("user-free")
	require.NoError(t, err)
	assert.InDelta(t, 120, amount, 1e-9)

	balance, err := svc.Balance("user-free")
	require.NoError(t, err)
	assert.InDelta(t, 0, balance, 1e-9)

	ledger, err := banks.BalanceFromLedger("user-free")
	require.NoError(t, err)
	assert.InDelta(t, 0, ledger, 1e-9)
}
