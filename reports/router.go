package reports

import (
	"context"
	"fmt"
	"time"

	"emperror.dev/errors"
	"github.com/cirelion/narc/bot"
	"github.com/cirelion/narc/bot/eventsystem"
	"github.com/cirelion/narc/commands"
)

// Router turns reactions into report actions. For an added reaction the
// first matching rule wins:
//
//  1. the bot's own reactions are ignored
//  2. users in a setup wizard are ignored
//  3. the report emoji on a guild message creates a report
//  4. refresh on a view re-renders the report
//  5. edit on a user view prompts for a new reason
//  6. claim on a mod view recounts the claimers
//  7. accept or reject on a mod view resolves the report
//
// A removed reaction only recounts claimers.
type Router struct {
	platform      bot.Platform
	store         *Store
	configs       *Configs
	guard         *Guard
	views         *Views
	promptTimeout time.Duration
}

func NewRouter(platform bot.Platform, store *Store, configs *Configs, guard *Guard, views *Views, promptTimeout time.Duration) *Router {
	return &Router{
		platform:      platform,
		store:         store,
		configs:       configs,
		guard:         guard,
		views:         views,
		promptTimeout: promptTimeout,
	}
}

func (r *Router) HandleReaction(evt *eventsystem.EventData) error {
	reaction := evt.Reaction()
	ctx := evt.Context()

	var err error
	if reaction.Added {
		err = r.ReactionAdded(ctx, reaction)
	} else {
		err = r.ReactionRemoved(ctx, reaction)
	}

	if err != nil {
		commands.SendErrorNotice(ctx, r.platform, commands.Notice{
			ChannelID: reaction.ChannelID,
			MessageID: reaction.MessageID,
			UserID:    reaction.UserID,
			Summary:   "Something went wrong while handling your reaction",
		}, err)
	}

	// already surfaced
	return nil
}

func (r *Router) ReactionAdded(ctx context.Context, evt *bot.ReactionEvent) error {
	if evt.UserID == r.platform.BotUserID() {
		return nil
	}

	if !r.guard.CanMakeReport(evt.UserID) {
		return nil
	}

	if evt.InGuild() {
		conf, err := r.configs.Get(evt.GuildID)
		if err != nil {
			return err
		}

		if isReportEmoji(conf, evt.Emoji) {
			metricsReactions.WithLabelValues("report").Inc()
			return r.handleReport(ctx, evt)
		}
	}

	switch {
	case sameEmoji(evt.Emoji, EmojiRefresh):
		return r.handleRefresh(ctx, evt)
	case sameEmoji(evt.Emoji, EmojiEdit):
		return r.handleEdit(ctx, evt)
	case sameEmoji(evt.Emoji, EmojiClaim):
		return r.handleClaim(ctx, evt)
	case sameEmoji(evt.Emoji, EmojiAccept):
		return r.handleResolve(ctx, evt, StatusAccepted)
	case sameEmoji(evt.Emoji, EmojiReject):
		return r.handleResolve(ctx, evt, StatusDenied)
	}

	return nil
}

func (r *Router) ReactionRemoved(ctx context.Context, evt *bot.ReactionEvent) error {
	if evt.UserID == r.platform.BotUserID() {
		return nil
	}

	if sameEmoji(evt.Emoji, EmojiClaim) {
		return r.handleClaim(ctx, evt)
	}

	return nil
}

func (r *Router) handleReport(ctx context.Context, evt *bot.ReactionEvent) error {
	err := r.platform.RemoveReaction(ctx, evt.ChannelID, evt.MessageID, evt.Emoji, evt.UserID)
	if err != nil {
		return err
	}

	msg, err := r.platform.FetchMessage(ctx, evt.ChannelID, evt.MessageID)
	if err != nil {
		return err
	}

	if msg.Author == nil {
		return errors.Errorf("message %d has no author", msg.ID)
	}

	_, err = r.CreateAndSync(ctx, CreateReportParams{
		GuildID:        evt.GuildID,
		AccuserID:      evt.UserID,
		ReportedUserID: msg.Author.ID,
		Origin: &OriginMessage{
			ChannelID: evt.ChannelID,
			MessageID: evt.MessageID,
			Content:   msg.Content,
		},
	})
	return err
}

// CreateAndSync creates the report and renders its views. Duplicates are
// rendered again too, that's harmless and repairs views that failed before.
func (r *Router) CreateAndSync(ctx context.Context, p CreateReportParams) (*CreateResult, error) {
	result, err := r.store.CreateReport(ctx, p)
	if err != nil {
		return nil, err
	}

	metricsReportsCreated.WithLabelValues(result.Outcome.String()).Inc()
	logger.WithField("guild", p.GuildID).WithField("report", result.ReportID).WithField("outcome", result.Outcome.String()).Info("Report made")

	return result, r.views.Sync(ctx, result.ReportID)
}

func (r *Router) handleRefresh(ctx context.Context, evt *bot.ReactionEvent) error {
	reportID, ok, err := r.viewReport(evt)
	if err != nil || !ok {
		return err
	}

	metricsReactions.WithLabelValues("refresh").Inc()

	// reactions can't be removed in DMs
	if evt.InGuild() {
		err = r.platform.RemoveReaction(ctx, evt.ChannelID, evt.MessageID, evt.Emoji, evt.UserID)
		if err != nil {
			return err
		}
	}

	return r.views.Sync(ctx, reportID)
}

func (r *Router) handleEdit(ctx context.Context, evt *bot.ReactionEvent) error {
	view, err := r.store.UserViewByMessage(evt.MessageID)
	if err != nil || view == nil {
		return err
	}

	metricsReactions.WithLabelValues("edit").Inc()

	if evt.InGuild() {
		err = r.platform.RemoveReaction(ctx, evt.ChannelID, evt.MessageID, evt.Emoji, evt.UserID)
		if err != nil {
			return err
		}
	}

	_, err = r.platform.SendMessage(ctx, evt.ChannelID, &bot.MessageSend{Content: "Type the reason for your report:"})
	if err != nil {
		return err
	}

	promptCtx, cancel := context.WithTimeout(ctx, r.promptTimeout)
	defer cancel()

	reply, err := r.platform.AwaitReply(promptCtx, evt.ChannelID, evt.UserID)
	if errors.Is(err, bot.ErrTimeout) {
		return ErrPromptTimeout
	}
	if err != nil {
		return err
	}

	if err = r.store.UpdateReason(ctx, view.ReportID, reply.Content); err != nil {
		return err
	}

	if err = r.views.Sync(ctx, view.ReportID); err != nil {
		return err
	}

	_, err = r.platform.SendMessage(ctx, evt.ChannelID, &bot.MessageSend{Content: "✅ Your report has been updated"})
	return err
}

func (r *Router) handleClaim(ctx context.Context, evt *bot.ReactionEvent) error {
	report, view, err := r.openModViewReport(evt)
	if err != nil || report == nil {
		return err
	}

	metricsReactions.WithLabelValues("claim").Inc()

	claimers, err := r.CountClaimers(ctx, view.ChannelID, view.MessageID)
	if err != nil {
		return err
	}

	t, err := r.store.Transition(ctx, report.ID, ClaimStatus(claimers))
	if err != nil || !t.Changed() {
		return err
	}

	metricsTransitions.WithLabelValues(t.To.String()).Inc()
	return r.views.Sync(ctx, report.ID)
}

// CountClaimers counts the distinct humans holding the claim reaction on a
// mod view. The bot's own affordance reaction and other bots don't count.
func (r *Router) CountClaimers(ctx context.Context, channelID, messageID int64) (int, error) {
	users, err := r.platform.ReactionUsers(ctx, channelID, messageID, EmojiClaim)
	if err != nil {
		return 0, err
	}

	botID := r.platform.BotUserID()
	seen := make(map[int64]bool)
	for _, u := range users {
		if u.ID == botID || u.Bot {
			continue
		}
		seen[u.ID] = true
	}

	return len(seen), nil
}

func (r *Router) handleResolve(ctx context.Context, evt *bot.ReactionEvent, to Status) error {
	report, _, err := r.openModViewReport(evt)
	if err != nil || report == nil {
		return err
	}

	metricsReactions.WithLabelValues("resolve").Inc()

	err = r.platform.RemoveReaction(ctx, evt.ChannelID, evt.MessageID, evt.Emoji, evt.UserID)
	if err != nil {
		return err
	}

	t, err := r.store.Resolve(ctx, report.ID, evt.UserID, to)
	if err != nil || !t.Changed() {
		return err
	}

	metricsTransitions.WithLabelValues(t.To.String()).Inc()
	logger.WithField("report", report.ID).WithField("handler", evt.UserID).WithField("status", t.To.String()).Info("Report resolved")

	syncErr := r.views.Sync(ctx, report.ID)
	return errors.Combine(syncErr, r.notifyAccuser(ctx, report, t.To))
}

// notifyAccuser replies to the accuser's user view with the outcome
func (r *Router) notifyAccuser(ctx context.Context, report *Report, status Status) error {
	view, err := r.store.UserView(report.ID)
	if err != nil || view == nil {
		return err
	}

	_, err = r.platform.SendMessage(ctx, view.ChannelID, &bot.MessageSend{
		Content: fmt.Sprintf("Your report (#%d) has been %s!", report.ID, status),
		ReplyTo: view.MessageID,
	})
	return err
}

// viewReport finds the report behind a mod view or user view message
func (r *Router) viewReport(evt *bot.ReactionEvent) (int64, bool, error) {
	if evt.InGuild() {
		mod, err := r.store.ModViewByMessage(evt.ChannelID, evt.MessageID)
		if err != nil || mod == nil {
			return 0, false, err
		}
		return mod.ReportID, true, nil
	}

	user, err := r.store.UserViewByMessage(evt.MessageID)
	if err != nil || user == nil {
		return 0, false, err
	}

	return user.ReportID, true, nil
}

// openModViewReport returns the report if evt is on its mod view and it's not
// resolved yet
func (r *Router) openModViewReport(evt *bot.ReactionEvent) (*Report, *ModViewRecord, error) {
	if !evt.InGuild() {
		return nil, nil, nil
	}

	view, err := r.store.ModViewByMessage(evt.ChannelID, evt.MessageID)
	if err != nil || view == nil {
		return nil, nil, err
	}

	report, err := r.store.Report(view.ReportID)
	if err != nil {
		return nil, nil, err
	}

	if report.Status.IsTerminal() {
		return nil, nil, nil
	}

	return report, view, nil
}
