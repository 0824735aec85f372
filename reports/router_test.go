package reports

import (
	"testing"
	"time"

	"github.com/AlekSi/pointer"
	"github.com/cirelion/narc/bot"
	"github.com/cirelion/narc/bot/bottest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *env) onlyReport() *Report {
	var reports []*Report
	require.NoError(e.t, e.plugin.Store.db.Find(&reports).Error)
	require.Len(e.t, reports, 1)
	return reports[0]
}

func (e *env) reportCount() int {
	var n int
	require.NoError(e.t, e.plugin.Store.db.Model(&Report{}).Count(&n).Error)
	return n
}

func TestEndToEnd(t *testing.T) {
	e := newEnv(t)
	e.configure(EmojiReport)

	reporter := e.fake.AddUser("reporter", false)
	author := e.fake.AddUser("author", false)
	modA := e.fake.AddUser("mod-a", false)
	modB := e.fake.AddUser("mod-b", false)

	flagged := e.fake.PostMessage(e.general.ID, author.ID, "something rude")
	require.NoError(t, e.react(reporter, e.general, flagged.ID, EmojiReport))

	report := e.onlyReport()
	assert.Equal(t, reporter.ID, report.AccuserUserID)
	assert.Equal(t, author.ID, report.ReportedUserID)
	assert.Equal(t, StatusUnhandled, report.Status)
	assert.Empty(t, e.fake.Reactors(flagged.ID, EmojiReport), "the flag reaction is removed")

	mod := e.modView(report.ID)
	assert.Equal(t, e.reports.ID, mod.ChannelID)
	assert.True(t, e.fake.IsPinned(mod.MessageID))
	for _, emoji := range modViewReactions {
		assert.Contains(t, e.fake.Reactors(mod.MessageID, emoji), e.fake.BotUserID())
	}

	user := e.userView(report.ID)
	dms := e.fake.DMsTo(reporter.ID)
	require.Len(t, dms, 1)
	assert.Equal(t, user.MessageID, dms[0].ID)
	for _, emoji := range userViewReactions {
		assert.Contains(t, e.fake.Reactors(user.MessageID, emoji), e.fake.BotUserID())
	}

	// one claim isn't enough
	require.NoError(t, e.react(modA, e.reports, mod.MessageID, EmojiClaim))
	assert.Equal(t, StatusUnhandled, e.report(report.ID).Status)

	require.NoError(t, e.react(modB, e.reports, mod.MessageID, EmojiClaim))
	assert.Equal(t, StatusReviewing, e.report(report.ID).Status)
	assert.True(t, e.fake.IsPinned(mod.MessageID))

	msg, _ := e.fake.Message(mod.MessageID)
	assert.Equal(t, StatusReviewing.String(), fieldValue(msg.Embed.Fields, "Status"))
	dm, _ := e.fake.Message(user.MessageID)
	assert.Equal(t, StatusReviewing.String(), fieldValue(dm.Embed.Fields, "Status"))

	require.NoError(t, e.react(modA, e.reports, mod.MessageID, EmojiAccept))
	report = e.report(report.ID)
	assert.Equal(t, StatusAccepted, report.Status)
	assert.Equal(t, modA.ID, pointer.GetInt64(e.modView(report.ID).HandlerUserID))
	assert.False(t, e.fake.IsPinned(mod.MessageID))
	assert.NotContains(t, e.fake.Reactors(mod.MessageID, EmojiAccept), modA.ID)

	dms = e.fake.DMsTo(reporter.ID)
	require.Len(t, dms, 2)
	assert.Equal(t, "Your report (#"+itoa(report.ID)+") has been ✅ Accepted!", dms[1].Content)
	assert.Equal(t, user.MessageID, dms[1].ReplyTo)

	// nothing moves a resolved report
	require.NoError(t, e.react(modB, e.reports, mod.MessageID, EmojiReject))
	require.NoError(t, e.unreact(modA, e.reports, mod.MessageID, EmojiClaim))
	require.NoError(t, e.unreact(modB, e.reports, mod.MessageID, EmojiClaim))
	assert.Equal(t, StatusAccepted, e.report(report.ID).Status)
	assert.Equal(t, modA.ID, pointer.GetInt64(e.modView(report.ID).HandlerUserID))
	assert.Len(t, e.fake.DMsTo(reporter.ID), 2)
}

func TestClaimCountExcludesBots(t *testing.T) {
	e := newEnv(t)
	e.configure(EmojiReport)

	reporter := e.fake.AddUser("reporter", false)
	author := e.fake.AddUser("author", false)
	mod := e.fake.AddUser("mod", false)
	otherBot := e.fake.AddUser("other-bot", true)

	flagged := e.fake.PostMessage(e.general.ID, author.ID, "hi")
	require.NoError(t, e.react(reporter, e.general, flagged.ID, EmojiReport))
	view := e.modView(e.onlyReport().ID)

	// the bot's own claim affordance plus another bot plus one human
	require.NoError(t, e.react(otherBot, e.reports, view.MessageID, EmojiClaim))
	require.NoError(t, e.react(mod, e.reports, view.MessageID, EmojiClaim))

	n, err := e.plugin.Router.CountClaimers(e.ctx, view.ChannelID, view.MessageID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, StatusUnhandled, e.onlyReport().Status)
}

func TestClaimRemovalFallsBack(t *testing.T) {
	e := newEnv(t)
	e.configure(EmojiReport)

	reporter := e.fake.AddUser("reporter", false)
	author := e.fake.AddUser("author", false)
	modA := e.fake.AddUser("mod-a", false)
	modB := e.fake.AddUser("mod-b", false)

	flagged := e.fake.PostMessage(e.general.ID, author.ID, "hi")
	require.NoError(t, e.react(reporter, e.general, flagged.ID, EmojiReport))
	view := e.modView(e.onlyReport().ID)

	require.NoError(t, e.react(modA, e.reports, view.MessageID, EmojiClaim))
	require.NoError(t, e.react(modB, e.reports, view.MessageID, EmojiClaim))
	assert.Equal(t, StatusReviewing, e.onlyReport().Status)

	require.NoError(t, e.unreact(modB, e.reports, view.MessageID, EmojiClaim))
	assert.Equal(t, StatusUnhandled, e.onlyReport().Status)
}

func TestDuplicateReactionReportsOnce(t *testing.T) {
	e := newEnv(t)
	e.configure(EmojiReport)

	reporter := e.fake.AddUser("reporter", false)
	author := e.fake.AddUser("author", false)
	flagged := e.fake.PostMessage(e.general.ID, author.ID, "hi")

	require.NoError(t, e.react(reporter, e.general, flagged.ID, EmojiReport))
	require.NoError(t, e.react(reporter, e.general, flagged.ID, EmojiReport))

	assert.Equal(t, 1, e.reportCount())
	assert.Len(t, e.fake.MessagesIn(e.reports.ID), 1)
	assert.Len(t, e.fake.DMsTo(reporter.ID), 1)
}

func TestCustomReportEmoji(t *testing.T) {
	e := newEnv(t)
	custom := bot.Emoji{ID: e.fake.NewID(), Name: "narc"}
	e.configure(custom)

	reporter := e.fake.AddUser("reporter", false)
	author := e.fake.AddUser("author", false)
	flagged := e.fake.PostMessage(e.general.ID, author.ID, "hi")

	require.NoError(t, e.react(reporter, e.general, flagged.ID, EmojiReport))
	assert.Equal(t, 0, e.reportCount())

	require.NoError(t, e.react(reporter, e.general, flagged.ID, custom))
	assert.Equal(t, 1, e.reportCount())
}

func TestReportEmojiIgnoredInDMs(t *testing.T) {
	e := newEnv(t)

	reporter := e.fake.AddUser("reporter", false)
	dm, err := e.fake.CreateDMChannel(e.ctx, reporter.ID)
	require.NoError(t, err)
	msg := e.fake.PostMessage(dm, e.fake.BotUserID(), "hello")

	require.NoError(t, e.plugin.Router.ReactionAdded(e.ctx, &bot.ReactionEvent{
		Added:     true,
		UserID:    reporter.ID,
		MessageID: msg.ID,
		ChannelID: dm,
		Emoji:     EmojiReport,
	}))
	assert.Equal(t, 0, e.reportCount())
}

func TestBotReactionsIgnored(t *testing.T) {
	e := newEnv(t)

	author := e.fake.AddUser("author", false)
	flagged := e.fake.PostMessage(e.general.ID, author.ID, "hi")

	require.NoError(t, e.react(e.fake.BotUser, e.general, flagged.ID, EmojiReport))
	assert.Equal(t, 0, e.reportCount())
}

func TestGuardSuppressesReports(t *testing.T) {
	e := newEnv(t)
	e.configure(EmojiReport)

	admin := e.fake.AddUser("admin", false)
	author := e.fake.AddUser("author", false)
	flagged := e.fake.PostMessage(e.general.ID, author.ID, "hi")

	release := e.plugin.Guard.EnterSetup(admin.ID)
	require.NoError(t, e.react(admin, e.general, flagged.ID, EmojiReport))
	assert.Equal(t, 0, e.reportCount())

	release()
	require.NoError(t, e.react(admin, e.general, flagged.ID, EmojiReport))
	assert.Equal(t, 1, e.reportCount())
}

func TestRefreshRerendersViews(t *testing.T) {
	e := newEnv(t)
	e.configure(EmojiReport)

	reporter := e.fake.AddUser("reporter", false)
	author := e.fake.AddUser("author", false)
	mod := e.fake.AddUser("mod", false)
	flagged := e.fake.PostMessage(e.general.ID, author.ID, "hi")

	e.fake.Fail("CreateDMChannel", &bot.RemoteError{Op: "CreateDMChannel", Kind: bot.RemoteNetwork, Err: assert.AnError})
	assert.Error(t, e.react(reporter, e.general, flagged.ID, EmojiReport))
	report := e.onlyReport()
	view := e.modView(report.ID)
	assert.Empty(t, e.fake.DMsTo(reporter.ID))

	e.fake.Recover("CreateDMChannel")
	require.NoError(t, e.react(mod, e.reports, view.MessageID, EmojiRefresh))
	assert.NotContains(t, e.fake.Reactors(view.MessageID, EmojiRefresh), mod.ID)
	assert.Equal(t, view.MessageID, e.modView(report.ID).MessageID)

	// refreshing the user view in DMs leaves the user's reaction alone
	user := e.userView(report.ID)
	dmChannel := e.channel(user.ChannelID)
	require.NoError(t, e.react(reporter, dmChannel, user.MessageID, EmojiRefresh))
	assert.Contains(t, e.fake.Reactors(user.MessageID, EmojiRefresh), reporter.ID)
	assert.Len(t, e.fake.DMsTo(reporter.ID), 1)
}

func TestEditPromptsForReason(t *testing.T) {
	e := newEnv(t)
	e.configure(EmojiReport)

	reporter := e.fake.AddUser("reporter", false)
	author := e.fake.AddUser("author", false)
	flagged := e.fake.PostMessage(e.general.ID, author.ID, "hi")
	require.NoError(t, e.react(reporter, e.general, flagged.ID, EmojiReport))

	report := e.onlyReport()
	user := e.userView(report.ID)
	dmChannel := e.channel(user.ChannelID)

	done := make(chan error, 1)
	go func() {
		done <- e.react(reporter, dmChannel, user.MessageID, EmojiEdit)
	}()

	require.Eventually(t, func() bool {
		return e.fake.DeliverMessage(&bot.Message{ChannelID: dmChannel.ID, Author: reporter, Content: "they were spamming"})
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, <-done)

	assert.Equal(t, "they were spamming", pointer.GetString(e.report(report.ID).Reason))

	dms := e.fake.DMsTo(reporter.ID)
	assert.Equal(t, "Type the reason for your report:", dms[len(dms)-2].Content)
	assert.Equal(t, "✅ Your report has been updated", dms[len(dms)-1].Content)

	mod, _ := e.fake.Message(e.modView(report.ID).MessageID)
	assert.Equal(t, "they were spamming", fieldValue(mod.Embed.Fields, "Provided Reason"))
}

func TestEditPromptTimesOut(t *testing.T) {
	e := newEnv(t)
	e.configure(EmojiReport)

	reporter := e.fake.AddUser("reporter", false)
	author := e.fake.AddUser("author", false)
	flagged := e.fake.PostMessage(e.general.ID, author.ID, "hi")
	require.NoError(t, e.react(reporter, e.general, flagged.ID, EmojiReport))

	report := e.onlyReport()
	user := e.userView(report.ID)

	err := e.react(reporter, e.channel(user.ChannelID), user.MessageID, EmojiEdit)
	assert.ErrorIs(t, err, ErrPromptTimeout)
	assert.Nil(t, e.report(report.ID).Reason)
}

func TestEditOnModViewDoesNothing(t *testing.T) {
	e := newEnv(t)
	e.configure(EmojiReport)

	reporter := e.fake.AddUser("reporter", false)
	author := e.fake.AddUser("author", false)
	mod := e.fake.AddUser("mod", false)
	flagged := e.fake.PostMessage(e.general.ID, author.ID, "hi")
	require.NoError(t, e.react(reporter, e.general, flagged.ID, EmojiReport))

	view := e.modView(e.onlyReport().ID)
	before := len(e.fake.MessagesIn(e.reports.ID))

	require.NoError(t, e.react(mod, e.reports, view.MessageID, EmojiEdit))
	assert.Len(t, e.fake.MessagesIn(e.reports.ID), before)
}

func TestRefreshUserViewInDMs(t *testing.T) {
	e := newEnv(t)
	e.configure(EmojiReport)

	reporter := e.fake.AddUser("reporter", false)
	author := e.fake.AddUser("author", false)
	flagged := e.fake.PostMessage(e.general.ID, author.ID, "hi")
	require.NoError(t, e.react(reporter, e.general, flagged.ID, EmojiReport))

	report := e.onlyReport()
	user := e.userView(report.ID)
	before, _ := e.fake.Message(user.MessageID)

	// stored state moved on without the views being told
	require.NoError(t, e.plugin.Store.UpdateReason(e.ctx, report.ID, "changed elsewhere"))

	// reactions can't be removed in DMs, trying to would fail the refresh
	e.fake.Fail("RemoveReaction", bottest.PermissionDenied("RemoveReaction"))
	require.NoError(t, e.react(reporter, e.channel(user.ChannelID), user.MessageID, EmojiRefresh))

	after, _ := e.fake.Message(user.MessageID)
	assert.Equal(t, before.Edits+1, after.Edits)
	assert.Equal(t, "changed elsewhere", fieldValue(after.Embed.Fields, "Provided Reason"))
	assert.Contains(t, e.fake.Reactors(user.MessageID, EmojiRefresh), reporter.ID)
	assert.Equal(t, user.MessageID, e.userView(report.ID).MessageID)

	mod, _ := e.fake.Message(e.modView(report.ID).MessageID)
	assert.Equal(t, "changed elsewhere", fieldValue(mod.Embed.Fields, "Provided Reason"))
}
