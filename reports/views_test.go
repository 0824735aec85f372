package reports

import (
	"testing"

	"github.com/AlekSi/pointer"
	"github.com/cirelion/narc/bot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *env) createReport(accuser, accused *bot.User, content string) int64 {
	msg := e.fake.PostMessage(e.general.ID, accused.ID, content)

	r, err := e.plugin.Store.CreateReport(e.ctx, CreateReportParams{
		GuildID:        e.guild.ID,
		AccuserID:      accuser.ID,
		ReportedUserID: accused.ID,
		Origin:         &OriginMessage{ChannelID: e.general.ID, MessageID: msg.ID, Content: content},
	})
	require.NoError(e.t, err)
	return r.ReportID
}

func TestSyncTwiceEditsSameMessages(t *testing.T) {
	e := newEnv(t)
	e.configure(EmojiReport)
	accuser := e.fake.AddUser("accuser", false)
	accused := e.fake.AddUser("accused", false)

	id := e.createReport(accuser, accused, "bad words")

	require.NoError(t, e.plugin.Views.Sync(e.ctx, id))
	mod := e.modView(id)
	user := e.userView(id)

	require.NoError(t, e.plugin.Views.Sync(e.ctx, id))
	assert.Equal(t, mod.MessageID, e.modView(id).MessageID)
	assert.Equal(t, user.MessageID, e.userView(id).MessageID)

	assert.Len(t, e.fake.MessagesIn(e.reports.ID), 1)
	assert.Len(t, e.fake.DMsTo(accuser.ID), 1)

	msg, ok := e.fake.Message(mod.MessageID)
	require.True(t, ok)
	assert.Equal(t, 1, msg.Edits)
	assert.Equal(t, "Report (ID #"+itoa(id)+")", msg.Embed.Author.Name)
	assert.True(t, e.fake.IsPinned(mod.MessageID))

	for _, emoji := range modViewReactions {
		assert.Equal(t, []int64{e.fake.BotUserID()}, e.fake.Reactors(mod.MessageID, emoji), emoji.Name)
	}
	for _, emoji := range userViewReactions {
		assert.Equal(t, []int64{e.fake.BotUserID()}, e.fake.Reactors(user.MessageID, emoji), emoji.Name)
	}
}

func TestSyncRendersPreviewAndReason(t *testing.T) {
	e := newEnv(t)
	e.configure(EmojiReport)
	accuser := e.fake.AddUser("accuser", false)
	accused := e.fake.AddUser("accused", false)

	id := e.createReport(accuser, accused, "the flagged text")
	require.NoError(t, e.plugin.Views.Sync(e.ctx, id))

	mod := e.modView(id)
	require.NotNil(t, mod.PreviewArchiveID)

	archive, err := e.plugin.Store.LatestArchive(*e.report(id).MessageID)
	require.NoError(t, err)
	require.NotNil(t, archive)
	assert.Equal(t, archive.ID, *mod.PreviewArchiveID)
	assert.Equal(t, "the flagged text", archive.Content)

	msg, _ := e.fake.Message(mod.MessageID)
	assert.Equal(t, "the flagged text", fieldValue(msg.Embed.Fields, "Preview"))
	assert.Equal(t, accused.Mention(), fieldValue(msg.Embed.Fields, "Accused User"))
	assert.Contains(t, fieldValue(msg.Embed.Fields, "Location"), "#general")

	dm, _ := e.fake.Message(e.userView(id).MessageID)
	assert.Contains(t, fieldValue(dm.Embed.Fields, "Provided Reason"), "React with 📝")

	require.NoError(t, e.plugin.Store.UpdateReason(e.ctx, id, "spamming"))
	require.NoError(t, e.plugin.Views.Sync(e.ctx, id))

	dm, _ = e.fake.Message(e.userView(id).MessageID)
	assert.Equal(t, "spamming", fieldValue(dm.Embed.Fields, "Provided Reason"))
}

func TestSyncUnconfiguredStillRendersUserView(t *testing.T) {
	e := newEnv(t)
	accuser := e.fake.AddUser("accuser", false)
	accused := e.fake.AddUser("accused", false)

	id := e.createReport(accuser, accused, "hi")

	err := e.plugin.Views.Sync(e.ctx, id)
	assert.ErrorIs(t, err, ErrUnconfiguredServer)

	mod, err := e.plugin.Store.ModView(id)
	require.NoError(t, err)
	assert.Nil(t, mod)

	e.userView(id)
	assert.Len(t, e.fake.DMsTo(accuser.ID), 1)
}

func TestSyncUserViewFailureStillRendersModView(t *testing.T) {
	e := newEnv(t)
	e.configure(EmojiReport)
	accuser := e.fake.AddUser("accuser", false)
	accused := e.fake.AddUser("accused", false)

	e.fake.Fail("CreateDMChannel", &bot.RemoteError{Op: "CreateDMChannel", Kind: bot.RemotePermission, Err: assert.AnError})

	id := e.createReport(accuser, accused, "hi")
	err := e.plugin.Views.Sync(e.ctx, id)
	assert.True(t, bot.IsRemoteErr(err, bot.RemotePermission))
	e.modView(id)

	// refresh is how the views catch up
	e.fake.Recover("CreateDMChannel")
	require.NoError(t, e.plugin.Views.Sync(e.ctx, id))
	e.userView(id)
}

func TestSyncResendsDeletedView(t *testing.T) {
	e := newEnv(t)
	e.configure(EmojiReport)
	accuser := e.fake.AddUser("accuser", false)
	accused := e.fake.AddUser("accused", false)

	id := e.createReport(accuser, accused, "hi")
	require.NoError(t, e.plugin.Views.Sync(e.ctx, id))
	old := e.modView(id)

	require.NoError(t, e.fake.DeleteMessage(e.ctx, old.ChannelID, old.MessageID))
	require.NoError(t, e.plugin.Views.Sync(e.ctx, id))

	current := e.modView(id)
	assert.NotEqual(t, old.MessageID, current.MessageID)
	assert.Len(t, e.fake.MessagesIn(e.reports.ID), 1)
	assert.True(t, e.fake.IsPinned(current.MessageID))
}

func TestSyncUnpinsTerminalReports(t *testing.T) {
	e := newEnv(t)
	e.configure(EmojiReport)
	accuser := e.fake.AddUser("accuser", false)
	accused := e.fake.AddUser("accused", false)

	id := e.createReport(accuser, accused, "hi")
	require.NoError(t, e.plugin.Views.Sync(e.ctx, id))

	_, err := e.plugin.Store.Resolve(e.ctx, id, e.owner.ID, StatusDenied)
	require.NoError(t, err)
	require.NoError(t, e.plugin.Views.Sync(e.ctx, id))

	mod := e.modView(id)
	assert.False(t, e.fake.IsPinned(mod.MessageID))

	msg, _ := e.fake.Message(mod.MessageID)
	assert.Equal(t, StatusDenied.Color(), msg.Embed.Color)
	assert.Equal(t, e.owner.Mention(), fieldValue(msg.Embed.Fields, "Report Handler"))
	assert.Equal(t, StatusDenied, e.userView(id).LastStatus)
	assert.Equal(t, e.owner.ID, pointer.GetInt64(mod.HandlerUserID))
}
