package reports

import (
	"context"
	"fmt"
	"strconv"

	"emperror.dev/errors"
	"github.com/AlekSi/pointer"
	"github.com/bwmarrin/discordgo"
	"github.com/cirelion/narc/bot"
)

const maxPreviewLength = 1000

// Views renders the two messages that show a report: the mod view in the
// reports channel and the user view in the accuser's DMs.
type Views struct {
	platform bot.Platform
	store    *Store
	configs  *Configs
}

func NewViews(platform bot.Platform, store *Store, configs *Configs) *Views {
	return &Views{platform: platform, store: store, configs: configs}
}

// Sync re-renders both views of a report from its stored state. Both views are
// always attempted, a failure of one doesn't stop the other.
func (v *Views) Sync(ctx context.Context, reportID int64) error {
	report, err := v.store.Report(reportID)
	if err != nil {
		return err
	}

	modErr := v.syncModView(ctx, report)
	if modErr != nil {
		metricsViewSyncFailures.WithLabelValues("mod").Inc()
		modErr = errors.WithMessage(modErr, "mod view")
	}

	userErr := v.syncUserView(ctx, report)
	if userErr != nil {
		metricsViewSyncFailures.WithLabelValues("user").Inc()
		userErr = errors.WithMessage(userErr, "user view")
	}

	return errors.Combine(modErr, userErr)
}

func (v *Views) syncModView(ctx context.Context, report *Report) error {
	conf, err := v.configs.Get(report.GuildID)
	if err != nil {
		return err
	}

	if conf == nil {
		return ErrUnconfiguredServer
	}

	view, err := v.store.ModView(report.ID)
	if err != nil {
		return err
	}

	rec := &ModViewRecord{ReportID: report.ID, ChannelID: conf.ReportsChannelID}
	if view != nil {
		rec.ChannelID = view.ChannelID
		rec.MessageID = view.MessageID
		rec.HandlerUserID = view.HandlerUserID
	}

	var preview *MessageArchive
	if report.MessageID != nil {
		preview, err = v.store.LatestArchive(*report.MessageID)
		if err != nil {
			return err
		}

		if preview != nil {
			rec.PreviewArchiveID = pointer.ToInt64(preview.ID)
		}
	}

	embed := v.modViewEmbed(ctx, report, rec, preview)
	msg, err := v.upsert(ctx, rec.ChannelID, rec.MessageID, &bot.MessageSend{Embed: embed})
	if err != nil {
		return err
	}

	rec.MessageID = msg.ID
	if err = v.store.SaveModView(ctx, rec); err != nil {
		return err
	}

	if err = v.addReactions(ctx, rec.ChannelID, rec.MessageID, modViewReactions); err != nil {
		return err
	}

	if report.Status.IsTerminal() {
		return v.platform.UnpinMessage(ctx, rec.ChannelID, rec.MessageID)
	}

	return v.platform.PinMessage(ctx, rec.ChannelID, rec.MessageID)
}

func (v *Views) syncUserView(ctx context.Context, report *Report) error {
	view, err := v.store.UserView(report.ID)
	if err != nil {
		return err
	}

	rec := &UserViewRecord{ReportID: report.ID, LastStatus: report.Status}
	if view != nil {
		rec.ChannelID = view.ChannelID
		rec.MessageID = view.MessageID
	}

	if rec.ChannelID == 0 {
		rec.ChannelID, err = v.platform.CreateDMChannel(ctx, report.AccuserUserID)
		if err != nil {
			return err
		}
	}

	msg, err := v.upsert(ctx, rec.ChannelID, rec.MessageID, &bot.MessageSend{Embed: v.userViewEmbed(ctx, report)})
	if err != nil {
		return err
	}

	rec.MessageID = msg.ID
	if err = v.store.SaveUserView(rec); err != nil {
		return err
	}

	return v.addReactions(ctx, rec.ChannelID, rec.MessageID, userViewReactions)
}

// upsert edits the message if there is one, or sends a new one if there
// isn't or it was deleted
func (v *Views) upsert(ctx context.Context, channelID, messageID int64, send *bot.MessageSend) (*bot.Message, error) {
	if messageID != 0 {
		msg, err := v.platform.EditMessage(ctx, channelID, messageID, send)
		if err == nil {
			return msg, nil
		}

		if !bot.IsRemoteErr(err, bot.RemoteNotFound) {
			return nil, err
		}

		logger.WithField("channel", channelID).WithField("message", messageID).Info("View message was deleted, sending a new one")
	}

	return v.platform.SendMessage(ctx, channelID, send)
}

func (v *Views) addReactions(ctx context.Context, channelID, messageID int64, emojis []bot.Emoji) error {
	for _, emoji := range emojis {
		if err := v.platform.AddReaction(ctx, channelID, messageID, emoji); err != nil {
			return err
		}
	}

	return nil
}

func (v *Views) modViewEmbed(ctx context.Context, report *Report, view *ModViewRecord, preview *MessageArchive) *discordgo.MessageEmbed {
	reporter := v.user(ctx, report.AccuserUserID)

	embed := &discordgo.MessageEmbed{
		Author: &discordgo.MessageEmbedAuthor{
			Name:    fmt.Sprintf("Report (ID #%d)", report.ID),
			IconURL: reporter.AvatarURL(),
		},
		Color: report.Status.Color(),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Accused User", Value: v.user(ctx, report.ReportedUserID).Mention(), Inline: true},
			{Name: "Reported By", Value: reporter.Mention(), Inline: true},
			{Name: "Status", Value: report.Status.String(), Inline: true},
		},
	}

	if location := v.location(ctx, report); location != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Location", Value: location, Inline: true})
	}

	if view.HandlerUserID != nil {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Report Handler",
			Value:  "<@" + strconv.FormatInt(*view.HandlerUserID, 10) + ">",
			Inline: true,
		})
	}

	if report.Reason != nil {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Provided Reason", Value: *report.Reason})
	}

	if preview != nil && preview.Content != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Preview", Value: truncate(preview.Content, maxPreviewLength)})
	}

	return embed
}

func (v *Views) userViewEmbed(ctx context.Context, report *Report) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Report (ID #%d)", report.ID),
		Color: report.Status.Color(),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Reported User", Value: v.user(ctx, report.ReportedUserID).Mention(), Inline: true},
			{Name: "Status", Value: report.Status.String(), Inline: true},
		},
	}

	if location := v.location(ctx, report); location != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Location", Value: location, Inline: true})
	}

	reason := "No reason provided! React with " + EmojiEdit.Name + " to provide one."
	if report.Reason != nil {
		reason = *report.Reason
	}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Provided Reason", Value: reason})

	return embed
}

// user falls back to a bare id when the user can't be fetched, the view is
// still worth rendering
func (v *Views) user(ctx context.Context, userID int64) *bot.User {
	u, err := v.platform.FetchUser(ctx, userID)
	if err != nil {
		logger.WithError(err).WithField("user", userID).Warn("Failed fetching user for report view")
		return &bot.User{ID: userID}
	}

	return u
}

func (v *Views) location(ctx context.Context, report *Report) string {
	if !report.HasOrigin() {
		return ""
	}

	name := strconv.FormatInt(*report.ChannelID, 10)
	if channel, err := v.platform.FetchChannel(ctx, *report.ChannelID); err == nil {
		name = channel.Name
	}

	return fmt.Sprintf("[#%s](https://discord.com/channels/%d/%d/%d)", name, report.GuildID, *report.ChannelID, *report.MessageID)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}

	return string(runes[:n-1]) + "…"
}
