package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/craftdesk/craftdesk/internal/database"
	"github.com/craftdesk/craftdesk/internal/models"
)

// PromptRepository defines the interface for prompt session persistence.
type PromptRepository interface {
	Create(session *models.PromptSession) error
	GetByTicket(ticketID string) (*models.PromptSession, error)
	GetByMessage(messageID string) (*models.PromptSession, error)
	Update(session *models.PromptSession) error
	Delete(id string) error
}

// PromptSQLRepository handles database operations for the prompt_sessions table.
type PromptSQLRepository struct {
	db *database.DB
}

// NewPromptRepository creates a new prompt session repository.
func NewPromptRepository(db *database.DB) *PromptSQLRepository {
	return &PromptSQLRepository{db: db}
}

const promptColumns = `id, ticket_id, guild_id, user_id, current_question_idx,
	done, message_id, error_message_id, responses, attachments, created_at, updated_at`

// Create inserts a new prompt session.
func (r *PromptSQLRepository) Create(session *models.PromptSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	if session.ResponsesJSON == "" {
		session.ResponsesJSON = "[]"
	}
	if session.AttachmentsJSON == "" {
		session.AttachmentsJSON = "[]"
	}

	query := r.db.Convert(`
		INSERT INTO prompt_sessions (` + promptColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.Exec(query,
		session.ID, session.TicketID, session.GuildID, session.UserID, session.CurrentQuestionIdx,
		session.Done, session.MessageID, session.ErrorMessageID, session.ResponsesJSON, session.AttachmentsJSON,
		session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create prompt session: %w", err)
	}
	return nil
}

// GetByTicket returns the live prompt session for a ticket, or nil.
func (r *PromptSQLRepository) GetByTicket(ticketID string) (*models.PromptSession, error) {
	return r.one("ticket_id = ?", ticketID)
}

// GetByMessage returns the session whose rendered question message matches,
// or nil. Button and select interactions resolve through this.
func (r *PromptSQLRepository) GetByMessage(messageID string) (*models.PromptSession, error) {
	return r.one("message_id = ?", messageID)
}

func (r *PromptSQLRepository) one(where string, args ...interface{}) (*models.PromptSession, error) {
	query := r.db.Convert(`SELECT ` + promptColumns + ` FROM prompt_sessions WHERE ` + where)
	var s models.PromptSession
	err := r.db.Get(&s, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prompt session: %w", err)
	}
	return &s, nil
}

// Update persists the session's cursor, flags and collected answers.
func (r *PromptSQLRepository) Update(session *models.PromptSession) error {
	session.UpdatedAt = time.Now().UTC()
	query := r.db.Convert(`
		UPDATE prompt_sessions SET
			current_question_idx = ?, done = ?, message_id = ?, error_message_id = ?,
			responses = ?, attachments = ?, updated_at = ?
		WHERE id = ?`)
	res, err := r.db.Exec(query,
		session.CurrentQuestionIdx, session.Done, session.MessageID, session.ErrorMessageID,
		session.ResponsesJSON, session.AttachmentsJSON, session.UpdatedAt,
		session.ID)
	if err != nil {
		return fmt.Errorf("failed to update prompt session: %w", err)
	}
	rows, err := res.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("prompt session %s not found", session.ID)
	}
	return nil
}

// Delete removes a finished or abandoned session.
func (r *PromptSQLRepository) Delete(id string) error {
	query := r.db.Convert(`DELETE FROM prompt_sessions WHERE id = ?`)
	if _, err := r.db.Exec(query, id); err != nil {
		return fmt.Errorf("failed to delete prompt session: %w", err)
	}
	return nil
}
