package reports

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cirelion/narc/bot"
	"github.com/cirelion/narc/bot/bottest"
	"github.com/cirelion/narc/common"
	"github.com/jinzhu/gorm"
	"github.com/stretchr/testify/require"

	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

func newTestDB(t *testing.T) *gorm.DB {
	db, err := common.ConnectDB("sqlite3", ":memory:")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	t.Cleanup(func() { db.Close() })
	return db
}

// env is a guild with a general channel and a reports channel, wired to a
// fake platform and an in memory database
type env struct {
	t      *testing.T
	ctx    context.Context
	fake   *bottest.Fake
	plugin *Plugin

	owner   *bot.User
	guild   *bot.Guild
	general *bot.Channel
	reports *bot.Channel
}

func newEnv(t *testing.T) *env {
	fake := bottest.NewFake()

	conf := common.DefaultCoreConfig()
	conf.PromptTimeout = 300 * time.Millisecond

	p := New(fake, newTestDB(t), conf)
	t.Cleanup(p.Stop)

	e := &env{t: t, ctx: context.Background(), fake: fake, plugin: p}
	e.owner = fake.AddUser("owner", false)
	e.guild = fake.AddGuild("guild", e.owner.ID)
	e.general = fake.AddChannel(e.guild.ID, "general")
	e.reports = fake.AddChannel(e.guild.ID, "reports")

	return e
}

func (e *env) configure(emoji bot.Emoji) {
	conf := &ServerConfig{GuildID: e.guild.ID, ReportsChannelID: e.reports.ID}
	if emoji.IsCustom() {
		conf.ReportEmojiCustomID = &emoji.ID
		conf.ReportEmojiName = emoji.Name
	} else {
		conf.ReportEmojiBuiltin = &emoji.Name
	}

	require.NoError(e.t, e.plugin.Configs.Save(e.ctx, conf))
}

func (e *env) react(user *bot.User, channel *bot.Channel, messageID int64, emoji bot.Emoji) error {
	e.fake.React(messageID, user.ID, emoji)
	return e.plugin.Router.ReactionAdded(e.ctx, &bot.ReactionEvent{
		Added:     true,
		UserID:    user.ID,
		MessageID: messageID,
		ChannelID: channel.ID,
		GuildID:   channel.GuildID,
		Emoji:     emoji,
	})
}

func (e *env) unreact(user *bot.User, channel *bot.Channel, messageID int64, emoji bot.Emoji) error {
	e.fake.Unreact(messageID, user.ID, emoji)
	return e.plugin.Router.ReactionRemoved(e.ctx, &bot.ReactionEvent{
		UserID:    user.ID,
		MessageID: messageID,
		ChannelID: channel.ID,
		GuildID:   channel.GuildID,
		Emoji:     emoji,
	})
}

func (e *env) report(id int64) *Report {
	r, err := e.plugin.Store.Report(id)
	require.NoError(e.t, err)
	return r
}

func (e *env) modView(reportID int64) *ModViewRecord {
	v, err := e.plugin.Store.ModView(reportID)
	require.NoError(e.t, err)
	require.NotNil(e.t, v)
	return v
}

func (e *env) userView(reportID int64) *UserViewRecord {
	v, err := e.plugin.Store.UserView(reportID)
	require.NoError(e.t, err)
	require.NotNil(e.t, v)
	return v
}

// channel returns the fake channel a view lives in
func (e *env) channel(id int64) *bot.Channel {
	c, err := e.fake.FetchChannel(e.ctx, id)
	require.NoError(e.t, err)
	return c
}

func fieldValue(fields []*discordgo.MessageEmbedField, name string) string {
	for _, f := range fields {
		if f.Name == name {
			return f.Value
		}
	}

	return ""
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
