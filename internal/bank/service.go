// Package bank keeps per-user balances and the revenue ledger, and
// performs the commission revenue split on delivery acceptance.
package bank

import (
	"fmt"
	"log"

	"github.com/craftdesk/craftdesk/internal/models"
	"github.com/craftdesk/craftdesk/internal/repository"
)

// Service wraps the bank and service-cut repositories with the split
// policy.
type Service struct {
	banks repository.BankRepository
	cuts  repository.ServiceCutRepository

	// cutPercent of invoice principal routed to service-cut recipients;
	// the freelancer receives the remainder.
	cutPercent float64
}

// NewService creates the bank service.
func NewService(banks repository.BankRepository, cuts repository.ServiceCutRepository, cutPercent float64) *Service {
	return &Service{banks: banks, cuts: cuts, cutPercent: cutPercent}
}

// SplitResult reports where the money went.
type SplitResult struct {
	FreelancerAmount float64
	ServiceAmount    float64
	RecipientCredits map[string]float64
}

// Split distributes a commission's invoice principal: cutPercent goes to
// the guild's service-cut recipients pro rata by their shares, and the
// freelancer is credited the remainder. Every credit lands in the ledger
// as its own transaction.
//
// The split uses the invoice principal, not the fee-inclusive total:
// handling fees cover gateway costs and are nobody's revenue.
func (s *Service) Split(guildID, freelancerID string, inv *models.Invoice, serial int) (*SplitResult, error) {
	if freelancerID == "" {
		return nil, fmt.Errorf("no freelancer assigned")
	}

	amountToService := inv.Amount * s.cutPercent / 100
	amountToFreelancer := inv.Amount - amountToService

	result := &SplitResult{
		FreelancerAmount: amountToFreelancer,
		ServiceAmount:    amountToService,
		RecipientCredits: make(map[string]float64),
	}

	cuts, err := s.cuts.ByGuild(guildID)
	if err != nil {
		return nil, err
	}
	note := fmt.Sprintf("commission #%d (invoice %s)", serial, inv.ID)
	for _, cut := range cuts {
		credit := amountToService * cut.Percentage / 100
		if credit == 0 {
			continue
		}
		if err := s.banks.Credit(cut.UserID, credit, models.TransactionServiceCutRevenue, note); err != nil {
			return nil, fmt.Errorf("failed to credit service cut for %s: %w", cut.UserID, err)
		}
		result.RecipientCredits[cut.UserID] = credit
	}

	if err := s.banks.Credit(freelancerID, amountToFreelancer, models.TransactionCommissionRevenue, note); err != nil {
		return nil, fmt.Errorf("failed to credit freelancer %s: %w", freelancerID, err)
	}

	log.Printf("[bank] split %.2f for %s: %.2f to freelancer %s, %.2f to service",
		inv.Amount, note, amountToFreelancer, freelancerID, amountToService)
	return result, nil
}

// Balance returns the user's cached balance, zero for unknown users.
func (s *Service) Balance(userID string) (float64, error) {
	bank, err := s.banks.GetByUser(userID)
	if err != nil {
		return 0, err
	}
	if bank == nil {
		return 0, nil
	}
	return bank.Balance, nil
}

// Withdraw debits the user's full balance and records the withdrawal.
func (s *Service) Withdraw(userID string) (float64, error) {
	bank, err := s.banks.GetByUser(userID)
	if err != nil {
		return 0, err
	}
	if bank == nil || bank.Balance <= 0 {
		return 0, fmt.Errorf("nothing to withdraw")
	}
	amount := bank.Balance
	if err := s.banks.Credit(userID, -amount, models.TransactionWithdrawal, "withdrawal"); err != nil {
		return 0, err
	}
	return amount, nil
}
