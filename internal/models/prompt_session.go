package models

import (
	"encoding/json"
	"time"
)

// PromptResponse is one recorded answer: the question label and the raw
// value the user gave.
type PromptResponse struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// PromptAttachment is a file the user attached while answering a text
// question.
type PromptAttachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// PromptSession is the persisted state of an in-progress questionnaire
// attached to a ticket. CurrentQuestionIdx only ever moves forward; once
// it reaches the question-list length the session is done and finalize
// fires exactly once.
type PromptSession struct {
	ID       string `db:"id" json:"id"`
	TicketID string `db:"ticket_id" json:"ticket_id"`
	GuildID  string `db:"guild_id" json:"guild_id"`
	UserID   string `db:"user_id" json:"user_id"`

	CurrentQuestionIdx int  `db:"current_question_idx" json:"current_question_idx"`
	Done               bool `db:"done" json:"done"`

	// MessageID is the rendered prompt message, replaced in place as the
	// session advances. ErrorMessageID tracks the last validation error
	// notice so it can be cleaned up.
	MessageID      string `db:"message_id" json:"message_id"`
	ErrorMessageID string `db:"error_message_id" json:"error_message_id"`

	ResponsesJSON   string `db:"responses" json:"-"`
	AttachmentsJSON string `db:"attachments" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Responses decodes the ordered answer sequence.
func (s *PromptSession) Responses() []PromptResponse {
	if s.ResponsesJSON == "" {
		return nil
	}
	var out []PromptResponse
	if err := json.Unmarshal([]byte(s.ResponsesJSON), &out); err != nil {
		return nil
	}
	return out
}

// AppendResponse records an answer at the end of the sequence.
func (s *PromptSession) AppendResponse(label, value string) {
	responses := append(s.Responses(), PromptResponse{Label: label, Value: value})
	raw, _ := json.Marshal(responses)
	s.ResponsesJSON = string(raw)
}

// Attachments decodes the saved attachment list.
func (s *PromptSession) Attachments() []PromptAttachment {
	if s.AttachmentsJSON == "" {
		return nil
	}
	var out []PromptAttachment
	if err := json.Unmarshal([]byte(s.AttachmentsJSON), &out); err != nil {
		return nil
	}
	return out
}

// AppendAttachments records attachments captured alongside a text answer.
func (s *PromptSession) AppendAttachments(items []PromptAttachment) {
	if len(items) == 0 {
		return
	}
	all := append(s.Attachments(), items...)
	raw, _ := json.Marshal(all)
	s.AttachmentsJSON = string(raw)
}
