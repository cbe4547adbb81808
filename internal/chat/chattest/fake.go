// Package chattest provides an in-memory chat.Platform for tests.
package chattest

import (
	"context"
	"fmt"
	"sync"

	"github.com/craftdesk/craftdesk/internal/chat"
)

// SentMessage records one Send or Edit call.
type SentMessage struct {
	ChannelID string
	MessageID string
	Message   chat.Message
}

// Channel is the fake's view of one channel.
type Channel struct {
	Info       chat.ChannelInfo
	Overwrites map[string]bool
	Deleted    bool
}

// Fake is an in-memory Platform. Zero value is not usable; call New.
type Fake struct {
	mu       sync.Mutex
	nextID   int
	Guilds   map[string]bool
	Users    map[string]chat.UserInfo
	Channels map[string]*Channel
	Sent     []SentMessage
	Edited   []SentMessage
	DMs      map[string][]chat.Message
	Roles    []string // "guild/user/role" grant records
}

// New returns an empty fake with one default guild.
func New() *Fake {
	return &Fake{
		Guilds:   map[string]bool{"guild-1": true},
		Users:    make(map[string]chat.UserInfo),
		Channels: make(map[string]*Channel),
		DMs:      make(map[string][]chat.Message),
	}
}

// AddUser registers a resolvable user.
func (f *Fake) AddUser(id, username string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Users[id] = chat.UserInfo{ID: id, Username: username}
}

// AddChannel registers an existing channel.
func (f *Fake) AddChannel(id, name, parentID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Channels[id] = &Channel{
		Info:       chat.ChannelInfo{ID: id, Name: name, ParentID: parentID},
		Overwrites: make(map[string]bool),
	}
}

func (f *Fake) GuildExists(_ context.Context, guildID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Guilds[guildID], nil
}

func (f *Fake) Channel(_ context.Context, channelID string) (*chat.ChannelInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.Channels[channelID]
	if !ok || ch.Deleted {
		return nil, nil
	}
	info := ch.Info
	return &info, nil
}

func (f *Fake) User(_ context.Context, userID string) (*chat.UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.Users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (f *Fake) CreateChannel(_ context.Context, guildID string, req chat.ChannelRequest) (*chat.ChannelInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.Guilds[guildID] {
		return nil, fmt.Errorf("guild %s not found", guildID)
	}
	f.nextID++
	id := fmt.Sprintf("chan-%d", f.nextID)
	ch := &Channel{
		Info:       chat.ChannelInfo{ID: id, Name: req.Name, ParentID: req.ParentID},
		Overwrites: make(map[string]bool),
	}
	for _, uid := range req.AllowedUserIDs {
		ch.Overwrites[uid] = true
	}
	for _, rid := range req.AllowedRoleIDs {
		ch.Overwrites[rid] = true
	}
	f.Channels[id] = ch
	info := ch.Info
	return &info, nil
}

func (f *Fake) DeleteChannel(_ context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.Channels[channelID]
	if !ok {
		return fmt.Errorf("channel %s not found", channelID)
	}
	ch.Deleted = true
	return nil
}

func (f *Fake) RenameChannel(_ context.Context, channelID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.Channels[channelID]
	if !ok || ch.Deleted {
		return fmt.Errorf("channel %s not found", channelID)
	}
	ch.Info.Name = name
	return nil
}

func (f *Fake) MoveChannel(_ context.Context, channelID, parentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.Channels[channelID]
	if !ok || ch.Deleted {
		return fmt.Errorf("channel %s not found", channelID)
	}
	ch.Info.ParentID = parentID
	return nil
}

func (f *Fake) SetOverwrite(_ context.Context, channelID, subjectID string, allow bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.Channels[channelID]
	if !ok || ch.Deleted {
		return fmt.Errorf("channel %s not found", channelID)
	}
	if allow {
		ch.Overwrites[subjectID] = true
	} else {
		delete(ch.Overwrites, subjectID)
	}
	return nil
}

func (f *Fake) ClearOverwrites(_ context.Context, channelID string, keep []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.Channels[channelID]
	if !ok || ch.Deleted {
		return fmt.Errorf("channel %s not found", channelID)
	}
	kept := make(map[string]bool, len(keep))
	for _, id := range keep {
		if ch.Overwrites[id] {
			kept[id] = true
		}
	}
	ch.Overwrites = kept
	return nil
}

func (f *Fake) Send(_ context.Context, channelID string, msg chat.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.Channels[channelID]
	if !ok || ch.Deleted {
		return "", fmt.Errorf("channel %s not found", channelID)
	}
	f.nextID++
	id := fmt.Sprintf("msg-%d", f.nextID)
	f.Sent = append(f.Sent, SentMessage{ChannelID: channelID, MessageID: id, Message: msg})
	return id, nil
}

func (f *Fake) Edit(_ context.Context, channelID, messageID string, msg chat.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Edited = append(f.Edited, SentMessage{ChannelID: channelID, MessageID: messageID, Message: msg})
	return nil
}

func (f *Fake) DeleteMessage(_ context.Context, _, _ string) error {
	return nil
}

func (f *Fake) SendDM(_ context.Context, userID string, msg chat.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DMs[userID] = append(f.DMs[userID], msg)
	return nil
}

func (f *Fake) GrantRole(_ context.Context, guildID, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Roles = append(f.Roles, guildID+"/"+userID+"/"+roleID)
	return nil
}

// LastSent returns the most recent Send payload, or nil.
func (f *Fake) LastSent() *SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Sent) == 0 {
		return nil
	}
	m := f.Sent[len(f.Sent)-1]
	return &m
}
