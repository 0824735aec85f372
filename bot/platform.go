package bot

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"
)

const PermissionAdministrator = discordgo.PermissionAdministrator

// Platform is everything the bot needs from the chat platform. All calls are
// remote and may fail with a *RemoteError.
type Platform interface {
	BotUserID() int64

	SendMessage(ctx context.Context, channelID int64, msg *MessageSend) (*Message, error)
	EditMessage(ctx context.Context, channelID, messageID int64, msg *MessageSend) (*Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID int64) error

	AddReaction(ctx context.Context, channelID, messageID int64, emoji Emoji) error
	RemoveReaction(ctx context.Context, channelID, messageID int64, emoji Emoji, userID int64) error
	// ReactionUsers returns the users that currently hold emoji on the message
	ReactionUsers(ctx context.Context, channelID, messageID int64, emoji Emoji) ([]*User, error)

	PinMessage(ctx context.Context, channelID, messageID int64) error
	UnpinMessage(ctx context.Context, channelID, messageID int64) error

	CreateDMChannel(ctx context.Context, userID int64) (int64, error)
	FetchMessage(ctx context.Context, channelID, messageID int64) (*Message, error)
	FetchUser(ctx context.Context, userID int64) (*User, error)
	FetchChannel(ctx context.Context, channelID int64) (*Channel, error)
	FetchGuild(ctx context.Context, guildID int64) (*Guild, error)
	MemberPermissions(ctx context.Context, channelID, userID int64) (int64, error)

	// AwaitReply blocks until userID sends a message in channelID or ctx is
	// done, returning ErrTimeout if the deadline passed.
	AwaitReply(ctx context.Context, channelID, userID int64) (*Message, error)
	// AwaitReaction blocks until userID adds a reaction to messageID
	AwaitReaction(ctx context.Context, messageID, userID int64) (Emoji, error)
}

type User struct {
	ID         int64
	Username   string
	Globalname string
	Avatar     string
	Bot        bool
}

func (u *User) Mention() string {
	return "<@" + strconv.FormatInt(u.ID, 10) + ">"
}

func (u *User) String() string {
	if u.Globalname != "" {
		return u.Globalname
	}

	return u.Username
}

func (u *User) AvatarURL() string {
	if u.Avatar == "" {
		return fmt.Sprintf("https://cdn.discordapp.com/embed/avatars/%d.png", (u.ID>>22)%6)
	}

	return discordgo.EndpointUserAvatar(strconv.FormatInt(u.ID, 10), u.Avatar)
}

type Channel struct {
	ID      int64
	GuildID int64
	Name    string
	DM      bool
}

func (c *Channel) Mention() string {
	return "<#" + strconv.FormatInt(c.ID, 10) + ">"
}

type Guild struct {
	ID      int64
	OwnerID int64
	Name    string
}

type Message struct {
	ID        int64
	ChannelID int64
	GuildID   int64
	Author    *User
	Content   string
}

// MessageSend is used for both sending and editing, an edit replaces the
// content and embed.
type MessageSend struct {
	Content string
	Embed   *discordgo.MessageEmbed
	// ReplyTo references a message in the same channel
	ReplyTo int64
}

// Emoji is either a builtin unicode glyph (ID == 0) or a custom guild emoji
type Emoji struct {
	ID       int64
	Name     string
	Animated bool
}

func UnicodeEmoji(glyph string) Emoji {
	return Emoji{Name: glyph}
}

func (e Emoji) IsCustom() bool {
	return e.ID != 0
}

// APIName is the form the reaction endpoints expect
func (e Emoji) APIName() string {
	if e.IsCustom() {
		return e.Name + ":" + strconv.FormatInt(e.ID, 10)
	}

	return e.Name
}

func (e Emoji) String() string {
	if !e.IsCustom() {
		return e.Name
	}

	prefix := "<:"
	if e.Animated {
		prefix = "<a:"
	}

	return prefix + e.Name + ":" + strconv.FormatInt(e.ID, 10) + ">"
}

type ReactionEvent struct {
	Added     bool
	UserID    int64
	MessageID int64
	ChannelID int64
	// GuildID is 0 for reactions in direct messages
	GuildID int64
	Emoji   Emoji
}

func (r *ReactionEvent) InGuild() bool {
	return r.GuildID != 0
}

type GuildEventKind int

const (
	GuildAvailable GuildEventKind = iota
	GuildUnavailable
	// GuildRemoved means the bot was kicked or the guild deleted
	GuildRemoved
)

type GuildEvent struct {
	Kind    GuildEventKind
	GuildID int64
	OwnerID int64
	Name    string
}
