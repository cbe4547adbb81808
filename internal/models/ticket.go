package models

import (
	"encoding/json"
	"time"
)

// TicketType discriminates the three workflow kinds. The stored integer
// values match the historical schema and must not be reordered.
type TicketType int

const (
	TicketCommission TicketType = iota
	TicketApplication
	TicketSupport
)

// String returns the lowercase name used in channel names and logs.
func (t TicketType) String() string {
	switch t {
	case TicketCommission:
		return "commission"
	case TicketApplication:
		return "application"
	case TicketSupport:
		return "support"
	default:
		return "unknown"
	}
}

// ArchiveAction selects the channel side effect applied when a ticket
// is archived.
type ArchiveAction string

const (
	// ArchiveDelete removes the channel entirely.
	ArchiveDelete ArchiveAction = "delete"
	// ArchiveCategorize strips non-privileged overwrites and moves the
	// channel into the configured archive category.
	ArchiveCategorize ArchiveAction = "categorize"
	// ArchiveNone leaves the channel as-is and only marks the row closed.
	ArchiveNone ArchiveAction = "none"
	// ArchiveHalt updates the row only. Used when the channel is already
	// gone, e.g. deleted externally.
	ArchiveHalt ArchiveAction = "halt"
)

// Ticket is one workflow instance bound to a chat channel and an author.
// Commission-only fields stay zero-valued for the other types.
type Ticket struct {
	ID        string     `db:"id" json:"id"`
	Type      TicketType `db:"type" json:"type"`
	Serial    int        `db:"serial" json:"serial"`
	GuildID   string     `db:"guild_id" json:"guild_id"`
	ChannelID string     `db:"channel_id" json:"channel_id"`
	AuthorID  string     `db:"author_id" json:"author_id"`

	Closed  bool `db:"closed" json:"closed"`
	Pending bool `db:"pending" json:"pending"`
	Fresh   bool `db:"fresh" json:"fresh"`

	ChannelName      string `db:"channel_name" json:"channel_name"`
	WelcomeMessageID string `db:"welcome_message_id" json:"welcome_message_id"`

	BeforeArchiveName     string `db:"before_archive_name" json:"before_archive_name"`
	BeforeArchivedPending bool   `db:"before_archived_pending" json:"before_archived_pending"`

	// Commission fields.
	SelectedService   string     `db:"selected_service" json:"selected_service"`
	InvoiceID         string     `db:"invoice_id" json:"invoice_id"`
	ManagerID         string     `db:"manager_id" json:"manager_id"`
	FreelancerID      string     `db:"freelancer_id" json:"freelancer_id"`
	Complete          bool       `db:"complete" json:"complete"`
	DeliveryAccepted  bool       `db:"delivery_accepted" json:"delivery_accepted"`
	LogMessageID      string     `db:"log_message_id" json:"log_message_id"`
	QuoteChannelID    string     `db:"quote_channel_id" json:"quote_channel_id"`
	Deadline          *time.Time `db:"deadline" json:"deadline,omitempty"`
	DeadlineMessageID string     `db:"deadline_message_id" json:"deadline_message_id"`
	LastQuoted        *time.Time `db:"last_quoted" json:"last_quoted,omitempty"`

	// DeniersJSON is the JSON-encoded set of user ids who declined to
	// quote this commission. Use Deniers/SetDeniers.
	DeniersJSON string `db:"deniers" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Deniers decodes the denier set. A malformed or empty column reads as
// an empty set.
func (t *Ticket) Deniers() []string {
	if t.DeniersJSON == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(t.DeniersJSON), &ids); err != nil {
		return nil
	}
	return ids
}

// HasDenied reports whether the given user already declined to quote.
func (t *Ticket) HasDenied(userID string) bool {
	for _, id := range t.Deniers() {
		if id == userID {
			return true
		}
	}
	return false
}

// AddDenier records a user in the denier set.
func (t *Ticket) AddDenier(userID string) {
	if t.HasDenied(userID) {
		return
	}
	ids := append(t.Deniers(), userID)
	raw, _ := json.Marshal(ids)
	t.DeniersJSON = string(raw)
}

// RemoveDenier drops a user from the denier set.
func (t *Ticket) RemoveDenier(userID string) {
	ids := t.Deniers()
	out := ids[:0]
	for _, id := range ids {
		if id != userID {
			out = append(out, id)
		}
	}
	raw, _ := json.Marshal(out)
	t.DeniersJSON = string(raw)
}
