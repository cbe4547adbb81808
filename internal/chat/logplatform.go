package chat

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
)

// LogPlatform is a Platform that records nothing and logs every render
// request. It keeps the service runnable headless, before an external
// chat connector is attached: lookups resolve, channel and message ids
// are fabricated locally.
type LogPlatform struct {
	seq    atomic.Int64
	logger *log.Logger
}

// NewLogPlatform creates a logging platform.
func NewLogPlatform() *LogPlatform {
	return &LogPlatform{logger: log.Default()}
}

func (p *LogPlatform) nextID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, p.seq.Add(1))
}

func (p *LogPlatform) GuildExists(_ context.Context, _ string) (bool, error) { return true, nil }

func (p *LogPlatform) Channel(_ context.Context, channelID string) (*ChannelInfo, error) {
	return &ChannelInfo{ID: channelID, Name: channelID}, nil
}

func (p *LogPlatform) User(_ context.Context, userID string) (*UserInfo, error) {
	return &UserInfo{ID: userID, Username: userID}, nil
}

func (p *LogPlatform) CreateChannel(_ context.Context, guildID string, req ChannelRequest) (*ChannelInfo, error) {
	id := p.nextID("channel")
	p.logger.Printf("[chat] create channel %q (%s) in guild %s", req.Name, id, guildID)
	return &ChannelInfo{ID: id, Name: req.Name, ParentID: req.ParentID}, nil
}

func (p *LogPlatform) DeleteChannel(_ context.Context, channelID string) error {
	p.logger.Printf("[chat] delete channel %s", channelID)
	return nil
}

func (p *LogPlatform) RenameChannel(_ context.Context, channelID, name string) error {
	p.logger.Printf("[chat] rename channel %s to %q", channelID, name)
	return nil
}

func (p *LogPlatform) MoveChannel(_ context.Context, channelID, parentID string) error {
	p.logger.Printf("[chat] move channel %s under %q", channelID, parentID)
	return nil
}

func (p *LogPlatform) SetOverwrite(_ context.Context, channelID, subjectID string, allow bool) error {
	p.logger.Printf("[chat] overwrite on %s: %s allow=%v", channelID, subjectID, allow)
	return nil
}

func (p *LogPlatform) ClearOverwrites(_ context.Context, channelID string, keep []string) error {
	p.logger.Printf("[chat] clear overwrites on %s keeping %v", channelID, keep)
	return nil
}

func (p *LogPlatform) Send(_ context.Context, channelID string, msg Message) (string, error) {
	id := p.nextID("message")
	p.logger.Printf("[chat] send to %s (%s): %s %s", channelID, id, msg.Title, msg.Body)
	return id, nil
}

func (p *LogPlatform) Edit(_ context.Context, channelID, messageID string, msg Message) error {
	p.logger.Printf("[chat] edit %s in %s: %s", messageID, channelID, msg.Title)
	return nil
}

func (p *LogPlatform) DeleteMessage(_ context.Context, channelID, messageID string) error {
	p.logger.Printf("[chat] delete message %s in %s", messageID, channelID)
	return nil
}

func (p *LogPlatform) SendDM(_ context.Context, userID string, msg Message) error {
	p.logger.Printf("[chat] dm to %s: %s %s", userID, msg.Title, msg.Body)
	return nil
}

func (p *LogPlatform) GrantRole(_ context.Context, guildID, userID, roleID string) error {
	p.logger.Printf("[chat] grant role %s to %s in %s", roleID, userID, guildID)
	return nil
}
