// Package repositorytest provides in-memory repository implementations
// for tests that exercise service logic without a database.
package repositorytest

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/craftdesk/craftdesk/internal/models"
	"github.com/craftdesk/craftdesk/internal/repository"
)

func copyTicket(t *models.Ticket) *models.Ticket {
	c := *t
	return &c
}

func copyInvoice(i *models.Invoice) *models.Invoice {
	c := *i
	return &c
}

// Tickets is an in-memory repository.TicketRepository.
type Tickets struct {
	mu      sync.Mutex
	nextID  int
	rows    map[string]*models.Ticket
	serials map[string]int
}

// NewTickets returns an empty ticket store.
func NewTickets() *Tickets {
	return &Tickets{rows: make(map[string]*models.Ticket), serials: make(map[string]int)}
}

func (s *Tickets) Create(t *models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		s.nextID++
		t.ID = fmt.Sprintf("ticket-%d", s.nextID)
	}
	t.CreatedAt = time.Now().UTC()
	t.UpdatedAt = t.CreatedAt
	s.rows[t.ID] = copyTicket(t)
	return nil
}

func (s *Tickets) GetByID(id string) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.rows[id]; ok {
		return copyTicket(t), nil
	}
	return nil, nil
}

func (s *Tickets) GetByChannel(channelID string) (*models.Ticket, error) {
	return s.Find(repository.TicketFilter{ChannelID: channelID})
}

func (s *Tickets) GetByInvoice(invoiceID string) (*models.Ticket, error) {
	return s.Find(repository.TicketFilter{InvoiceID: invoiceID})
}

func matches(t *models.Ticket, f repository.TicketFilter) bool {
	if f.GuildID != "" && t.GuildID != f.GuildID {
		return false
	}
	if f.ChannelID != "" && t.ChannelID != f.ChannelID {
		return false
	}
	if f.AuthorID != "" && t.AuthorID != f.AuthorID {
		return false
	}
	if f.InvoiceID != "" && t.InvoiceID != f.InvoiceID {
		return false
	}
	if f.Type != nil && t.Type != *f.Type {
		return false
	}
	if f.Closed != nil && t.Closed != *f.Closed {
		return false
	}
	if f.Pending != nil && t.Pending != *f.Pending {
		return false
	}
	if f.Fresh != nil && t.Fresh != *f.Fresh {
		return false
	}
	if f.Complete != nil && t.Complete != *f.Complete {
		return false
	}
	return true
}

func (s *Tickets) Find(f repository.TicketFilter) (*models.Ticket, error) {
	all, _ := s.FindAll(f)
	if len(all) == 0 {
		return nil, nil
	}
	return all[0], nil
}

func (s *Tickets) FindAll(f repository.TicketFilter) ([]*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Ticket
	for _, t := range s.rows {
		if matches(t, f) {
			out = append(out, copyTicket(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Tickets) Update(t *models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[t.ID]; !ok {
		return fmt.Errorf("ticket %s not found", t.ID)
	}
	t.UpdatedAt = time.Now().UTC()
	s.rows[t.ID] = copyTicket(t)
	return nil
}

func (s *Tickets) NextSerial(guildID string, ticketType models.TicketType) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := guildID + "/" + ticketType.String()
	s.serials[key]++
	return s.serials[key], nil
}

func (s *Tickets) WithDeadlineBefore(cutoff time.Time) ([]*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Ticket
	for _, t := range s.rows {
		if t.Deadline != nil && !t.Closed && t.Deadline.Before(cutoff) {
			out = append(out, copyTicket(t))
		}
	}
	return out, nil
}

func (s *Tickets) QuotedBefore(cutoff time.Time) ([]*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Ticket
	for _, t := range s.rows {
		if t.Type == models.TicketCommission && !t.Closed && t.FreelancerID == "" &&
			t.LastQuoted != nil && !t.LastQuoted.After(cutoff) {
			out = append(out, copyTicket(t))
		}
	}
	return out, nil
}

// Invoices is an in-memory repository.InvoiceRepository.
type Invoices struct {
	mu     sync.Mutex
	nextID int
	rows   map[string]*models.Invoice
}

// NewInvoices returns an empty invoice store.
func NewInvoices() *Invoices {
	return &Invoices{rows: make(map[string]*models.Invoice)}
}

func (s *Invoices) Create(i *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i.ID == "" {
		s.nextID++
		i.ID = fmt.Sprintf("invoice-%d", s.nextID)
	}
	i.CreatedAt = time.Now().UTC()
	i.UpdatedAt = i.CreatedAt
	s.rows[i.ID] = copyInvoice(i)
	return nil
}

func (s *Invoices) GetByID(id string) (*models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.rows[id]; ok {
		return copyInvoice(i), nil
	}
	return nil, nil
}

func (s *Invoices) GetByReference(gatewayID, reference string) (*models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range s.rows {
		if i.GatewayID == gatewayID && i.GatewayReference == reference {
			return copyInvoice(i), nil
		}
	}
	return nil, nil
}

func (s *Invoices) GetActiveByTicket(ticketID string) (*models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range s.rows {
		if i.TicketID == ticketID && i.Active() {
			return copyInvoice(i), nil
		}
	}
	return nil, nil
}

func (s *Invoices) Update(i *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[i.ID]; !ok {
		return fmt.Errorf("invoice %s not found", i.ID)
	}
	i.UpdatedAt = time.Now().UTC()
	s.rows[i.ID] = copyInvoice(i)
	return nil
}

func (s *Invoices) FindOpen() ([]*models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Invoice
	for _, i := range s.rows {
		if i.Open() {
			out = append(out, copyInvoice(i))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

// Prompts is an in-memory repository.PromptRepository.
type Prompts struct {
	mu     sync.Mutex
	nextID int
	rows   map[string]*models.PromptSession
}

// NewPrompts returns an empty prompt session store.
func NewPrompts() *Prompts {
	return &Prompts{rows: make(map[string]*models.PromptSession)}
}

func (s *Prompts) Create(p *models.PromptSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		s.nextID++
		p.ID = fmt.Sprintf("session-%d", s.nextID)
	}
	c := *p
	s.rows[p.ID] = &c
	return nil
}

func (s *Prompts) GetByTicket(ticketID string) (*models.PromptSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.rows {
		if p.TicketID == ticketID {
			c := *p
			return &c, nil
		}
	}
	return nil, nil
}

func (s *Prompts) GetByMessage(messageID string) (*models.PromptSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.rows {
		if p.MessageID == messageID {
			c := *p
			return &c, nil
		}
	}
	return nil, nil
}

func (s *Prompts) Update(p *models.PromptSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[p.ID]; !ok {
		return fmt.Errorf("session %s not found", p.ID)
	}
	c := *p
	s.rows[p.ID] = &c
	return nil
}

func (s *Prompts) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

// Quotes is an in-memory repository.QuoteRepository.
type Quotes struct {
	mu     sync.Mutex
	nextID int
	rows   map[string]*models.Quote
}

// NewQuotes returns an empty quote store.
func NewQuotes() *Quotes {
	return &Quotes{rows: make(map[string]*models.Quote)}
}

func (s *Quotes) Create(q *models.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q.ID == "" {
		s.nextID++
		q.ID = fmt.Sprintf("quote-%d", s.nextID)
	}
	q.CreatedAt = time.Now().UTC()
	c := *q
	s.rows[q.ID] = &c
	return nil
}

func (s *Quotes) GetByID(id string) (*models.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.rows[id]; ok {
		c := *q
		return &c, nil
	}
	return nil, nil
}

func (s *Quotes) GetByMessage(messageID string) (*models.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.rows {
		if q.MessageID == messageID {
			c := *q
			return &c, nil
		}
	}
	return nil, nil
}

func (s *Quotes) ByCommission(commissionID string) ([]*models.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Quote
	for _, q := range s.rows {
		if q.CommissionID == commissionID {
			c := *q
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Quotes) Update(q *models.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[q.ID]; !ok {
		return fmt.Errorf("quote %s not found", q.ID)
	}
	c := *q
	s.rows[q.ID] = &c
	return nil
}

// Timers is an in-memory repository.ArchiveTimerRepository.
type Timers struct {
	mu     sync.Mutex
	nextID int
	rows   map[string]*models.ArchiveTimer
}

// NewTimers returns an empty archive timer store.
func NewTimers() *Timers {
	return &Timers{rows: make(map[string]*models.ArchiveTimer)}
}

func (s *Timers) Create(t *models.ArchiveTimer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		s.nextID++
		t.ID = fmt.Sprintf("timer-%d", s.nextID)
	}
	t.CreatedAt = time.Now().UTC()
	c := *t
	s.rows[t.ID] = &c
	return nil
}

func (s *Timers) Due(now time.Time) ([]*models.ArchiveTimer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.ArchiveTimer
	for _, t := range s.rows {
		if !t.ArchiveAfter.After(now) {
			c := *t
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Timers) ByTicket(ticketID string) ([]*models.ArchiveTimer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.ArchiveTimer
	for _, t := range s.rows {
		if t.TicketID == ticketID {
			c := *t
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *Timers) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

func (s *Timers) DeleteCancellableByTicket(ticketID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, t := range s.rows {
		if t.TicketID == ticketID && t.MessageCancels {
			delete(s.rows, id)
			n++
		}
	}
	return n, nil
}

// Cooldowns is an in-memory repository.CooldownRepository.
type Cooldowns struct {
	mu   sync.Mutex
	rows map[string]time.Time
}

// NewCooldowns returns an empty cooldown store.
func NewCooldowns() *Cooldowns {
	return &Cooldowns{rows: make(map[string]time.Time)}
}

func (s *Cooldowns) Get(authorID string) (*models.Cooldown, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if exp, ok := s.rows[authorID]; ok {
		return &models.Cooldown{AuthorID: authorID, ExpiresAt: exp}, nil
	}
	return nil, nil
}

func (s *Cooldowns) Set(authorID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[authorID] = expiresAt
	return nil
}

func (s *Cooldowns) DeleteExpired(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, exp := range s.rows {
		if exp.Before(now) {
			delete(s.rows, id)
			n++
		}
	}
	return n, nil
}

// Banks is an in-memory repository.BankRepository with a ledger.
type Banks struct {
	mu           sync.Mutex
	nextID       int
	balances     map[string]float64
	Transactions []*models.Transaction
}

// NewBanks returns an empty bank store.
func NewBanks() *Banks {
	return &Banks{balances: make(map[string]float64)}
}

func (s *Banks) GetOrCreate(userID string) (*models.Bank, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &models.Bank{ID: "bank-" + userID, UserID: userID, Balance: s.balances[userID]}, nil
}

func (s *Banks) GetByUser(userID string) (*models.Bank, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.balances[userID]; !ok {
		return nil, nil
	}
	return &models.Bank{ID: "bank-" + userID, UserID: userID, Balance: s.balances[userID]}, nil
}

func (s *Banks) Credit(userID string, amount float64, txType, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[userID] += amount
	s.nextID++
	s.Transactions = append(s.Transactions, &models.Transaction{
		ID:        fmt.Sprintf("tx-%d", s.nextID),
		UserID:    userID,
		Type:      txType,
		Amount:    amount,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (s *Banks) TransactionsByUser(userID string, limit int) ([]*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Transaction
	for _, tx := range s.Transactions {
		if tx.UserID == userID {
			c := *tx
			out = append(out, &c)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *Banks) BalanceFromLedger(userID string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum float64
	for _, tx := range s.Transactions {
		if tx.UserID == userID {
			sum += tx.Amount
		}
	}
	return sum, nil
}

// Cuts is an in-memory repository.ServiceCutRepository.
type Cuts struct {
	mu   sync.Mutex
	rows map[string]map[string]float64 // guild -> user -> share
}

// NewCuts returns an empty service cut store.
func NewCuts() *Cuts {
	return &Cuts{rows: make(map[string]map[string]float64)}
}

func (s *Cuts) ByGuild(guildID string) ([]*models.ServiceCut, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.ServiceCut
	for userID, share := range s.rows[guildID] {
		out = append(out, &models.ServiceCut{
			ID: guildID + "/" + userID, GuildID: guildID, UserID: userID, Percentage: share,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *Cuts) Set(guildID, userID string, percentage float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if percentage <= 0 || percentage > 100 {
		return repository.ErrCutOverflow
	}
	total := percentage
	for u, share := range s.rows[guildID] {
		if u != userID {
			total += share
		}
	}
	if total > 100 {
		return repository.ErrCutOverflow
	}
	if s.rows[guildID] == nil {
		s.rows[guildID] = make(map[string]float64)
	}
	s.rows[guildID][userID] = percentage
	return nil
}

func (s *Cuts) Remove(guildID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows[guildID], userID)
	return nil
}
