package reports

import (
	"context"
	"strings"

	"emperror.dev/errors"
	"github.com/AlekSi/pointer"
	"github.com/bwmarrin/discordgo"
	"github.com/cirelion/narc/bot"
	"github.com/cirelion/narc/commands"
	"github.com/cirelion/narc/common"
)

func (p *Plugin) Commands() []*commands.Command {
	return []*commands.Command{
		{
			Name:         "Setup",
			Description:  "Sets up the server for Narc to use",
			RequireAdmin: true,
			GuildOnly:    true,
			RunFunc:      p.runSetup,
		},
		{
			Name:        "Report",
			Aliases:     []string{"r"},
			Description: "Submits a report on a user",
			Arguments:   "<User> [Reason]",
			GuildOnly:   true,
			RunFunc:     p.runReport,
		},
	}
}

func (p *Plugin) runReport(data *commands.Data) (interface{}, error) {
	if len(data.Args) == 0 {
		return nil, ErrUnknownUser
	}

	userID, ok := ParseUser(data.Args[0])
	if !ok {
		return nil, ErrUnknownUser
	}

	ctx := data.Context()
	target, err := p.Platform.FetchUser(ctx, userID)
	if bot.IsRemoteErr(err, bot.RemoteNotFound) {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, err
	}

	if target.ID == data.Author.ID {
		return "You can't report yourself, silly.", nil
	}

	params := CreateReportParams{
		GuildID:        data.GuildID,
		AccuserID:      data.Author.ID,
		ReportedUserID: target.ID,
	}

	if reason := data.Rest(1); reason != "" {
		params.Reason = pointer.ToString(reason)
	}

	_, err = p.Router.CreateAndSync(ctx, params)
	if errors.Is(err, ErrUnconfiguredServer) {
		return nil, ErrUnconfiguredServer
	}

	return nil, err
}

func (p *Plugin) runSetup(data *commands.Data) (interface{}, error) {
	// reactions made while answering the prompts must not turn into reports
	release := p.Guard.EnterSetup(data.Author.ID)
	defer release()

	ctx := data.Context()

	channelID, err := p.promptReportsChannel(ctx, data)
	if err != nil {
		return nil, err
	}

	emoji, err := p.promptReportEmoji(ctx, data)
	if err != nil {
		return nil, err
	}

	prefix, err := p.promptPrefix(ctx, data)
	if err != nil {
		return nil, err
	}

	confirmed, err := p.promptConfirmation(ctx, data, channelID, emoji, prefix)
	if err != nil {
		return nil, err
	}

	if !confirmed {
		return nil, commands.UserError("Configuration rejected, nothing was changed")
	}

	conf := &ServerConfig{
		GuildID:          data.GuildID,
		ReportsChannelID: channelID,
		Prefix:           pointer.ToString(prefix),
	}

	if emoji.IsCustom() {
		conf.ReportEmojiCustomID = pointer.ToInt64(emoji.ID)
		conf.ReportEmojiName = emoji.Name
	} else {
		conf.ReportEmojiBuiltin = pointer.ToString(emoji.Name)
	}

	if err = p.Configs.Save(ctx, conf); err != nil {
		return nil, err
	}

	logger.WithField("guild", data.GuildID).WithField("channel", channelID).Info("Server configured")

	return &discordgo.MessageEmbed{
		Title:       "Configuration Completed!",
		Description: "Narc has been successfully configured.",
	}, nil
}

func (p *Plugin) promptReportsChannel(ctx context.Context, data *commands.Data) (int64, error) {
	_, err := p.sendPrompt(ctx, data, "Configure Narc (1/3)", "Reports Channel", "Please type the channel that reports will be sent to")
	if err != nil {
		return 0, err
	}

	reply, err := p.awaitReply(ctx, data.Message.ChannelID, data.Author.ID)
	if err != nil {
		return 0, err
	}

	channelID, ok := ParseChannel(reply.Content)
	if !ok {
		return 0, ErrBadChannel
	}

	channel, err := p.Platform.FetchChannel(ctx, channelID)
	if bot.IsRemoteErr(err, bot.RemoteNotFound, bot.RemotePermission) {
		return 0, ErrBadChannel
	}
	if err != nil {
		return 0, err
	}

	if channel.GuildID != data.GuildID {
		return 0, ErrBadChannel
	}

	return channel.ID, nil
}

// promptReportEmoji takes whichever comes first, a typed emoji or a reaction
// to the prompt
func (p *Plugin) promptReportEmoji(ctx context.Context, data *commands.Data) (bot.Emoji, error) {
	prompt, err := p.sendPrompt(ctx, data, "Configure Narc (2/3)", "Report Emoji",
		"Please react or type the emoji to use for reports. Suggested: "+EmojiReport.Name)
	if err != nil {
		return bot.Emoji{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.PromptTimeout)
	defer cancel()

	emoji, err := bot.Race(ctx,
		func(ctx context.Context) (bot.Emoji, error) {
			reply, err := p.Platform.AwaitReply(ctx, data.Message.ChannelID, data.Author.ID)
			if err != nil {
				return bot.Emoji{}, err
			}
			return ParseEmoji(reply.Content)
		},
		func(ctx context.Context) (bot.Emoji, error) {
			return p.Platform.AwaitReaction(ctx, prompt.ID, data.Author.ID)
		},
	)

	if errors.Is(err, bot.ErrTimeout) {
		return bot.Emoji{}, ErrPromptTimeout
	}

	return emoji, err
}

func (p *Plugin) promptPrefix(ctx context.Context, data *commands.Data) (string, error) {
	_, err := p.sendPrompt(ctx, data, "Configure Narc (3/3)", "Prefix",
		"What prefix should Narc respond to? Suggested: **`"+common.DefaultPrefix+"`**")
	if err != nil {
		return "", err
	}

	reply, err := p.awaitReply(ctx, data.Message.ChannelID, data.Author.ID)
	if err != nil {
		return "", err
	}

	prefix := strings.TrimSpace(reply.Content)
	if prefix == "" || strings.ContainsAny(prefix, " \t\n") {
		return "", commands.NewUserErrorf("`%s` can't be used as a prefix, it can't be empty or contain spaces", reply.Content)
	}

	return prefix, nil
}

func (p *Plugin) promptConfirmation(ctx context.Context, data *commands.Data, channelID int64, emoji bot.Emoji, prefix string) (bool, error) {
	guild, err := p.Platform.FetchGuild(ctx, data.GuildID)
	if err != nil {
		return false, err
	}

	msg, err := p.Platform.SendMessage(ctx, data.Message.ChannelID, &bot.MessageSend{
		Embed: &discordgo.MessageEmbed{
			Title:       "Narc Configuration Confirmation",
			Description: "These settings will replace the current configuration of **" + guild.Name + "**.",
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Reports Channel", Value: (&bot.Channel{ID: channelID}).Mention(), Inline: true},
				{Name: "Report Emoji", Value: emoji.String(), Inline: true},
				{Name: "Narc Prefix", Value: prefix, Inline: true},
			},
		},
	})
	if err != nil {
		return false, err
	}

	for _, e := range []bot.Emoji{EmojiAccept, EmojiReject} {
		if err = p.Platform.AddReaction(ctx, msg.ChannelID, msg.ID, e); err != nil {
			return false, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.PromptTimeout)
	defer cancel()

	for {
		reaction, err := p.Platform.AwaitReaction(ctx, msg.ID, data.Author.ID)
		if errors.Is(err, bot.ErrTimeout) {
			return false, ErrPromptTimeout
		}
		if err != nil {
			return false, err
		}

		switch {
		case sameEmoji(reaction, EmojiAccept):
			return true, nil
		case sameEmoji(reaction, EmojiReject):
			return false, nil
		}
	}
}

func (p *Plugin) sendPrompt(ctx context.Context, data *commands.Data, title, field, text string) (*bot.Message, error) {
	return p.Platform.SendMessage(ctx, data.Message.ChannelID, &bot.MessageSend{
		Embed: &discordgo.MessageEmbed{
			Title:  title,
			Fields: []*discordgo.MessageEmbedField{{Name: field, Value: text}},
		},
	})
}

func (p *Plugin) awaitReply(ctx context.Context, channelID, userID int64) (*bot.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, p.PromptTimeout)
	defer cancel()

	reply, err := p.Platform.AwaitReply(ctx, channelID, userID)
	if errors.Is(err, bot.ErrTimeout) {
		return nil, ErrPromptTimeout
	}

	return reply, err
}
