package discord

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/cirelion/narc/bot"
	"github.com/cirelion/narc/bot/eventsystem"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("stck", "discord")

// Platform implements bot.Platform on top of a discordgo session
type Platform struct {
	Session *discordgo.Session

	waiters *bot.Waiters
	events  *eventsystem.System
}

var _ bot.Platform = (*Platform)(nil)

func New(token string, events *eventsystem.System) (*Platform, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, errors.WrapIf(err, "discordgo.New")
	}

	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsDirectMessageReactions |
		discordgo.IntentsMessageContent

	// failures are surfaced to the caller instead of being retried behind its back
	s.MaxRestRetries = 0
	s.ShouldRetryOnRateLimit = false
	s.StateEnabled = true

	p := &Platform{
		Session: s,
		waiters: bot.NewWaiters(),
		events:  events,
	}
	p.addHandlers()

	return p, nil
}

func (p *Platform) Open() error {
	return errors.WrapIf(p.Session.Open(), "open gateway")
}

func (p *Platform) Close() error {
	return p.Session.Close()
}

func (p *Platform) BotUserID() int64 {
	if p.Session.State == nil || p.Session.State.User == nil {
		return 0
	}

	return parseID(p.Session.State.User.ID)
}

func (p *Platform) SendMessage(ctx context.Context, channelID int64, msg *bot.MessageSend) (*bot.Message, error) {
	send := &discordgo.MessageSend{
		Content: msg.Content,
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers},
		},
	}

	if msg.Embed != nil {
		send.Embeds = []*discordgo.MessageEmbed{msg.Embed}
	}

	if msg.ReplyTo != 0 {
		send.Reference = &discordgo.MessageReference{
			MessageID: fmtID(msg.ReplyTo),
			ChannelID: fmtID(channelID),
		}
	}

	m, err := p.Session.ChannelMessageSendComplex(fmtID(channelID), send, discordgo.WithContext(ctx))
	if err != nil {
		return nil, remoteErr("SendMessage", err)
	}

	return convertMessage(m), nil
}

func (p *Platform) EditMessage(ctx context.Context, channelID, messageID int64, msg *bot.MessageSend) (*bot.Message, error) {
	edit := discordgo.NewMessageEdit(fmtID(channelID), fmtID(messageID)).SetContent(msg.Content)
	if msg.Embed != nil {
		edit.SetEmbed(msg.Embed)
	}

	m, err := p.Session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	if err != nil {
		return nil, remoteErr("EditMessage", err)
	}

	return convertMessage(m), nil
}

func (p *Platform) DeleteMessage(ctx context.Context, channelID, messageID int64) error {
	err := p.Session.ChannelMessageDelete(fmtID(channelID), fmtID(messageID), discordgo.WithContext(ctx))
	return remoteErr("DeleteMessage", err)
}

func (p *Platform) AddReaction(ctx context.Context, channelID, messageID int64, emoji bot.Emoji) error {
	err := p.Session.MessageReactionAdd(fmtID(channelID), fmtID(messageID), emoji.APIName(), discordgo.WithContext(ctx))
	return remoteErr("AddReaction", err)
}

func (p *Platform) RemoveReaction(ctx context.Context, channelID, messageID int64, emoji bot.Emoji, userID int64) error {
	err := p.Session.MessageReactionRemove(fmtID(channelID), fmtID(messageID), emoji.APIName(), fmtID(userID), discordgo.WithContext(ctx))
	return remoteErr("RemoveReaction", err)
}

func (p *Platform) ReactionUsers(ctx context.Context, channelID, messageID int64, emoji bot.Emoji) ([]*bot.User, error) {
	users, err := p.Session.MessageReactions(fmtID(channelID), fmtID(messageID), emoji.APIName(), 100, "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, remoteErr("ReactionUsers", err)
	}

	result := make([]*bot.User, 0, len(users))
	for _, u := range users {
		result = append(result, convertUser(u))
	}

	return result, nil
}

func (p *Platform) PinMessage(ctx context.Context, channelID, messageID int64) error {
	err := p.Session.ChannelMessagePin(fmtID(channelID), fmtID(messageID), discordgo.WithContext(ctx))
	return remoteErr("PinMessage", err)
}

func (p *Platform) UnpinMessage(ctx context.Context, channelID, messageID int64) error {
	err := p.Session.ChannelMessageUnpin(fmtID(channelID), fmtID(messageID), discordgo.WithContext(ctx))
	return remoteErr("UnpinMessage", err)
}

func (p *Platform) CreateDMChannel(ctx context.Context, userID int64) (int64, error) {
	ch, err := p.Session.UserChannelCreate(fmtID(userID), discordgo.WithContext(ctx))
	if err != nil {
		return 0, remoteErr("CreateDMChannel", err)
	}

	return parseID(ch.ID), nil
}

func (p *Platform) FetchMessage(ctx context.Context, channelID, messageID int64) (*bot.Message, error) {
	m, err := p.Session.ChannelMessage(fmtID(channelID), fmtID(messageID), discordgo.WithContext(ctx))
	if err != nil {
		return nil, remoteErr("FetchMessage", err)
	}

	return convertMessage(m), nil
}

func (p *Platform) FetchUser(ctx context.Context, userID int64) (*bot.User, error) {
	u, err := p.Session.User(fmtID(userID), discordgo.WithContext(ctx))
	if err != nil {
		return nil, remoteErr("FetchUser", err)
	}

	return convertUser(u), nil
}

func (p *Platform) FetchChannel(ctx context.Context, channelID int64) (*bot.Channel, error) {
	if c, err := p.Session.State.Channel(fmtID(channelID)); err == nil {
		return convertChannel(c), nil
	}

	c, err := p.Session.Channel(fmtID(channelID), discordgo.WithContext(ctx))
	if err != nil {
		return nil, remoteErr("FetchChannel", err)
	}

	return convertChannel(c), nil
}

func (p *Platform) FetchGuild(ctx context.Context, guildID int64) (*bot.Guild, error) {
	if g, err := p.Session.State.Guild(fmtID(guildID)); err == nil {
		return convertGuild(g), nil
	}

	g, err := p.Session.Guild(fmtID(guildID), discordgo.WithContext(ctx))
	if err != nil {
		return nil, remoteErr("FetchGuild", err)
	}

	return convertGuild(g), nil
}

func (p *Platform) MemberPermissions(ctx context.Context, channelID, userID int64) (int64, error) {
	perms, err := p.Session.UserChannelPermissions(fmtID(userID), fmtID(channelID), discordgo.WithContext(ctx))
	if err != nil {
		return 0, remoteErr("MemberPermissions", err)
	}

	return perms, nil
}

func (p *Platform) AwaitReply(ctx context.Context, channelID, userID int64) (*bot.Message, error) {
	return p.waiters.AwaitReply(ctx, channelID, userID)
}

func (p *Platform) AwaitReaction(ctx context.Context, messageID, userID int64) (bot.Emoji, error) {
	return p.waiters.AwaitReaction(ctx, messageID, userID)
}

// remoteErr classifies a discordgo failure, nil stays nil
func remoteErr(op string, err error) error {
	if err == nil {
		return nil
	}

	kind := bot.RemoteUnknown

	var restErr *discordgo.RESTError
	var rateErr *discordgo.RateLimitError
	var netErr net.Error
	switch {
	case errors.As(err, &rateErr):
		// 429s come back as RateLimitError since the session doesn't wait them out
		kind = bot.RemoteRateLimited
	case errors.As(err, &restErr) && restErr.Response != nil:
		switch restErr.Response.StatusCode {
		case http.StatusForbidden, http.StatusUnauthorized:
			kind = bot.RemotePermission
		case http.StatusNotFound:
			kind = bot.RemoteNotFound
		case http.StatusTooManyRequests:
			kind = bot.RemoteRateLimited
		}
	case errors.As(err, &netErr), errors.Is(err, context.DeadlineExceeded):
		kind = bot.RemoteNetwork
	}

	return &bot.RemoteError{Op: op, Kind: kind, Err: err}
}

func parseID(s string) int64 {
	id, _ := strconv.ParseInt(s, 10, 64)
	return id
}

func fmtID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func convertUser(u *discordgo.User) *bot.User {
	if u == nil {
		return nil
	}

	return &bot.User{
		ID:         parseID(u.ID),
		Username:   u.Username,
		Globalname: u.GlobalName,
		Avatar:     u.Avatar,
		Bot:        u.Bot,
	}
}

func convertMessage(m *discordgo.Message) *bot.Message {
	return &bot.Message{
		ID:        parseID(m.ID),
		ChannelID: parseID(m.ChannelID),
		GuildID:   parseID(m.GuildID),
		Author:    convertUser(m.Author),
		Content:   m.Content,
	}
}

func convertChannel(c *discordgo.Channel) *bot.Channel {
	return &bot.Channel{
		ID:      parseID(c.ID),
		GuildID: parseID(c.GuildID),
		Name:    c.Name,
		DM:      c.Type == discordgo.ChannelTypeDM || c.Type == discordgo.ChannelTypeGroupDM,
	}
}

func convertGuild(g *discordgo.Guild) *bot.Guild {
	return &bot.Guild{
		ID:      parseID(g.ID),
		OwnerID: parseID(g.OwnerID),
		Name:    g.Name,
	}
}

func convertEmoji(e discordgo.Emoji) bot.Emoji {
	return bot.Emoji{
		ID:       parseID(e.ID),
		Name:     e.Name,
		Animated: e.Animated,
	}
}

func convertReaction(r *discordgo.MessageReaction, added bool) *bot.ReactionEvent {
	return &bot.ReactionEvent{
		Added:     added,
		UserID:    parseID(r.UserID),
		MessageID: parseID(r.MessageID),
		ChannelID: parseID(r.ChannelID),
		GuildID:   parseID(r.GuildID),
		Emoji:     convertEmoji(r.Emoji),
	}
}
