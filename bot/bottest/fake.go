// Package bottest provides an in memory bot.Platform for tests
package bottest

import (
	"context"
	"sync"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/bwmarrin/snowflake"
	"github.com/cirelion/narc/bot"
)

type StoredMessage struct {
	bot.Message
	Embed   *discordgo.MessageEmbed
	ReplyTo int64
	Edits   int
}

// Fake records everything the bot does. Failures can be injected per
// operation name (the Platform method name).
type Fake struct {
	*bot.Waiters

	BotUser *bot.User

	mu        sync.Mutex
	node      *snowflake.Node
	messages  map[int64]*StoredMessage
	order     []int64
	reactions map[int64]map[string][]int64
	pinned    map[int64]bool
	users     map[int64]*bot.User
	channels  map[int64]*bot.Channel
	guilds    map[int64]*bot.Guild
	dms       map[int64]int64
	perms     map[int64]int64
	failures  map[string]error
}

var _ bot.Platform = (*Fake)(nil)

func NewFake() *Fake {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}

	f := &Fake{
		Waiters:   bot.NewWaiters(),
		node:      node,
		messages:  make(map[int64]*StoredMessage),
		reactions: make(map[int64]map[string][]int64),
		pinned:    make(map[int64]bool),
		users:     make(map[int64]*bot.User),
		channels:  make(map[int64]*bot.Channel),
		guilds:    make(map[int64]*bot.Guild),
		dms:       make(map[int64]int64),
		perms:     make(map[int64]int64),
		failures:  make(map[string]error),
	}
	f.BotUser = f.AddUser("narc", true)

	return f
}

func (f *Fake) NewID() int64 {
	return f.node.Generate().Int64()
}

func (f *Fake) AddUser(name string, isBot bool) *bot.User {
	u := &bot.User{ID: f.NewID(), Username: name, Bot: isBot}

	f.mu.Lock()
	f.users[u.ID] = u
	f.mu.Unlock()
	return u
}

func (f *Fake) AddGuild(name string, ownerID int64) *bot.Guild {
	g := &bot.Guild{ID: f.NewID(), Name: name, OwnerID: ownerID}

	f.mu.Lock()
	f.guilds[g.ID] = g
	f.mu.Unlock()
	return g
}

func (f *Fake) AddChannel(guildID int64, name string) *bot.Channel {
	c := &bot.Channel{ID: f.NewID(), GuildID: guildID, Name: name}

	f.mu.Lock()
	f.channels[c.ID] = c
	f.mu.Unlock()
	return c
}

func (f *Fake) SetPermissions(userID, perms int64) {
	f.mu.Lock()
	f.perms[userID] = perms
	f.mu.Unlock()
}

// Fail makes every call to op return err until Recover is called
func (f *Fake) Fail(op string, err error) {
	f.mu.Lock()
	f.failures[op] = err
	f.mu.Unlock()
}

func (f *Fake) Recover(op string) {
	f.mu.Lock()
	delete(f.failures, op)
	f.mu.Unlock()
}

// PostMessage stores a message as if authorID had written it
func (f *Fake) PostMessage(channelID, authorID int64, content string) *bot.Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	m := f.store(channelID, authorID, &bot.MessageSend{Content: content})
	cop := m.Message
	return &cop
}

// SetContent simulates the author editing their message
func (f *Fake) SetContent(messageID int64, content string) {
	f.mu.Lock()
	f.messages[messageID].Content = content
	f.mu.Unlock()
}

// React adds userID's reaction without emitting an event
func (f *Fake) React(messageID, userID int64, emoji bot.Emoji) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.react(messageID, userID, emoji)
}

func (f *Fake) Unreact(messageID, userID int64, emoji bot.Emoji) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unreact(messageID, userID, emoji)
}

func (f *Fake) Message(messageID int64) (StoredMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, ok := f.messages[messageID]
	if !ok {
		return StoredMessage{}, false
	}
	return *m, true
}

// MessagesIn returns the messages of a channel oldest first
func (f *Fake) MessagesIn(channelID int64) []StoredMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []StoredMessage
	for _, id := range f.order {
		if m, ok := f.messages[id]; ok && m.ChannelID == channelID {
			result = append(result, *m)
		}
	}
	return result
}

// DMsTo returns the direct messages sent to userID
func (f *Fake) DMsTo(userID int64) []StoredMessage {
	f.mu.Lock()
	ch, ok := f.dms[userID]
	f.mu.Unlock()
	if !ok {
		return nil
	}

	return f.MessagesIn(ch)
}

func (f *Fake) Reactors(messageID int64, emoji bot.Emoji) []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]int64(nil), f.reactions[messageID][emoji.APIName()]...)
}

func (f *Fake) IsPinned(messageID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pinned[messageID]
}

func (f *Fake) BotUserID() int64 {
	return f.BotUser.ID
}

func (f *Fake) SendMessage(ctx context.Context, channelID int64, msg *bot.MessageSend) (*bot.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failure("SendMessage"); err != nil {
		return nil, err
	}

	if _, ok := f.channels[channelID]; !ok {
		return nil, notFound("SendMessage", "unknown channel")
	}

	m := f.store(channelID, f.BotUser.ID, msg)
	cop := m.Message
	return &cop, nil
}

func (f *Fake) EditMessage(ctx context.Context, channelID, messageID int64, msg *bot.MessageSend) (*bot.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failure("EditMessage"); err != nil {
		return nil, err
	}

	m, ok := f.messages[messageID]
	if !ok || m.ChannelID != channelID {
		return nil, notFound("EditMessage", "unknown message")
	}

	m.Content = msg.Content
	m.Embed = msg.Embed
	m.Edits++

	cop := m.Message
	return &cop, nil
}

func (f *Fake) DeleteMessage(ctx context.Context, channelID, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failure("DeleteMessage"); err != nil {
		return err
	}

	if _, ok := f.messages[messageID]; !ok {
		return notFound("DeleteMessage", "unknown message")
	}

	delete(f.messages, messageID)
	delete(f.reactions, messageID)
	return nil
}

func (f *Fake) AddReaction(ctx context.Context, channelID, messageID int64, emoji bot.Emoji) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failure("AddReaction"); err != nil {
		return err
	}

	if _, ok := f.messages[messageID]; !ok {
		return notFound("AddReaction", "unknown message")
	}

	f.react(messageID, f.BotUser.ID, emoji)
	return nil
}

func (f *Fake) RemoveReaction(ctx context.Context, channelID, messageID int64, emoji bot.Emoji, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failure("RemoveReaction"); err != nil {
		return err
	}

	f.unreact(messageID, userID, emoji)
	return nil
}

func (f *Fake) ReactionUsers(ctx context.Context, channelID, messageID int64, emoji bot.Emoji) ([]*bot.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failure("ReactionUsers"); err != nil {
		return nil, err
	}

	if _, ok := f.messages[messageID]; !ok {
		return nil, notFound("ReactionUsers", "unknown message")
	}

	var users []*bot.User
	for _, id := range f.reactions[messageID][emoji.APIName()] {
		u, ok := f.users[id]
		if !ok {
			u = &bot.User{ID: id}
		}
		users = append(users, u)
	}

	return users, nil
}

func (f *Fake) PinMessage(ctx context.Context, channelID, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failure("PinMessage"); err != nil {
		return err
	}

	f.pinned[messageID] = true
	return nil
}

func (f *Fake) UnpinMessage(ctx context.Context, channelID, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failure("UnpinMessage"); err != nil {
		return err
	}

	delete(f.pinned, messageID)
	return nil
}

func (f *Fake) CreateDMChannel(ctx context.Context, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failure("CreateDMChannel"); err != nil {
		return 0, err
	}

	if ch, ok := f.dms[userID]; ok {
		return ch, nil
	}

	ch := &bot.Channel{ID: f.node.Generate().Int64(), DM: true}
	f.channels[ch.ID] = ch
	f.dms[userID] = ch.ID
	return ch.ID, nil
}

func (f *Fake) FetchMessage(ctx context.Context, channelID, messageID int64) (*bot.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failure("FetchMessage"); err != nil {
		return nil, err
	}

	m, ok := f.messages[messageID]
	if !ok || m.ChannelID != channelID {
		return nil, notFound("FetchMessage", "unknown message")
	}

	cop := m.Message
	return &cop, nil
}

func (f *Fake) FetchUser(ctx context.Context, userID int64) (*bot.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failure("FetchUser"); err != nil {
		return nil, err
	}

	u, ok := f.users[userID]
	if !ok {
		return nil, notFound("FetchUser", "unknown user")
	}

	cop := *u
	return &cop, nil
}

func (f *Fake) FetchChannel(ctx context.Context, channelID int64) (*bot.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failure("FetchChannel"); err != nil {
		return nil, err
	}

	c, ok := f.channels[channelID]
	if !ok {
		return nil, notFound("FetchChannel", "unknown channel")
	}

	cop := *c
	return &cop, nil
}

func (f *Fake) FetchGuild(ctx context.Context, guildID int64) (*bot.Guild, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failure("FetchGuild"); err != nil {
		return nil, err
	}

	g, ok := f.guilds[guildID]
	if !ok {
		return nil, notFound("FetchGuild", "unknown guild")
	}

	cop := *g
	return &cop, nil
}

func (f *Fake) MemberPermissions(ctx context.Context, channelID, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failure("MemberPermissions"); err != nil {
		return 0, err
	}

	return f.perms[userID], nil
}

func (f *Fake) store(channelID, authorID int64, msg *bot.MessageSend) *StoredMessage {
	author, ok := f.users[authorID]
	if !ok {
		author = &bot.User{ID: authorID}
	}

	m := &StoredMessage{
		Message: bot.Message{
			ID:        f.node.Generate().Int64(),
			ChannelID: channelID,
			Author:    author,
			Content:   msg.Content,
		},
		Embed:   msg.Embed,
		ReplyTo: msg.ReplyTo,
	}

	if c, ok := f.channels[channelID]; ok {
		m.GuildID = c.GuildID
	}

	f.messages[m.ID] = m
	f.order = append(f.order, m.ID)
	return m
}

func (f *Fake) react(messageID, userID int64, emoji bot.Emoji) {
	byEmoji, ok := f.reactions[messageID]
	if !ok {
		byEmoji = make(map[string][]int64)
		f.reactions[messageID] = byEmoji
	}

	key := emoji.APIName()
	for _, id := range byEmoji[key] {
		if id == userID {
			return
		}
	}

	byEmoji[key] = append(byEmoji[key], userID)
}

func (f *Fake) unreact(messageID, userID int64, emoji bot.Emoji) {
	key := emoji.APIName()
	users := f.reactions[messageID][key]
	for i, id := range users {
		if id == userID {
			f.reactions[messageID][key] = append(users[:i:i], users[i+1:]...)
			return
		}
	}
}

func (f *Fake) failure(op string) error {
	if err, ok := f.failures[op]; ok {
		return err
	}

	return nil
}

func notFound(op, msg string) error {
	return &bot.RemoteError{Op: op, Kind: bot.RemoteNotFound, Err: errors.NewPlain(msg)}
}

// PermissionDenied builds the error a platform returns on missing permissions
func PermissionDenied(op string) error {
	return &bot.RemoteError{Op: op, Kind: bot.RemotePermission, Err: errors.NewPlain("missing access")}
}
