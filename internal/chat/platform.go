// Package chat defines the seam to the chat platform. The core hands
// render requests to a Platform implementation and receives user
// interaction events through the ticket and prompt packages; the actual
// embed/component rendering and event routing live outside this module.
package chat

import "context"

// MessageKind colors a rendered notice.
type MessageKind string

const (
	KindInfo    MessageKind = "info"
	KindSuccess MessageKind = "success"
	KindWarn    MessageKind = "warn"
	KindError   MessageKind = "error"
)

// Field is one labeled value inside a rendered message.
type Field struct {
	Name  string
	Value string
}

// Button is an action the platform layer turns into an interactive
// component. CustomID round-trips through the interaction event.
type Button struct {
	CustomID string
	Label    string
	URL      string
}

// SelectOption is one choice inside a select menu component.
type SelectOption struct {
	Label       string
	Value       string
	Description string
}

// Select is a select-menu component attached to a message.
type Select struct {
	CustomID    string
	Placeholder string
	MinValues   int
	MaxValues   int
	Options     []SelectOption
}

// Message is the render payload the core produces. The platform layer
// decides how it maps onto embeds and components.
type Message struct {
	Kind    MessageKind
	Title   string
	Body    string
	Fields  []Field
	Buttons []Button
	Selects []Select
}

// ChannelRequest describes a channel to create.
type ChannelRequest struct {
	Name     string
	Topic    string
	ParentID string
	// AllowedUserIDs get read+write overwrites; everyone else is denied.
	AllowedUserIDs []string
	// AllowedRoleIDs get read+write overwrites.
	AllowedRoleIDs []string
}

// ChannelInfo is the resolved state of a live channel.
type ChannelInfo struct {
	ID       string
	Name     string
	ParentID string
}

// UserInfo is the resolved identity of a platform user.
type UserInfo struct {
	ID       string
	Username string
}

// Platform is the chat-platform collaborator. Implementations wrap one
// client connection. All lookups return (nil, nil) when the entity does
// not exist; errors are reserved for transport failures.
type Platform interface {
	GuildExists(ctx context.Context, guildID string) (bool, error)
	Channel(ctx context.Context, channelID string) (*ChannelInfo, error)
	User(ctx context.Context, userID string) (*UserInfo, error)

	CreateChannel(ctx context.Context, guildID string, req ChannelRequest) (*ChannelInfo, error)
	DeleteChannel(ctx context.Context, channelID string) error
	RenameChannel(ctx context.Context, channelID, name string) error
	// MoveChannel reparents a channel; empty parentID detaches it.
	MoveChannel(ctx context.Context, channelID, parentID string) error

	// SetOverwrite grants or revokes read+write for one user or role id.
	SetOverwrite(ctx context.Context, channelID, subjectID string, allow bool) error
	// ClearOverwrites removes all overwrites except the listed subjects.
	ClearOverwrites(ctx context.Context, channelID string, keep []string) error

	Send(ctx context.Context, channelID string, msg Message) (messageID string, err error)
	Edit(ctx context.Context, channelID, messageID string, msg Message) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	SendDM(ctx context.Context, userID string, msg Message) error

	GrantRole(ctx context.Context, guildID, userID, roleID string) error
}
