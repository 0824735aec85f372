package welcome

import (
	"context"
	"time"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/cirelion/narc/bot"
	"github.com/cirelion/narc/bot/eventsystem"
)

// WelcomedGuild marks a guild whose owner already got the welcome message.
// Guilds become available again on every reconnect, the marker keeps the
// owner from being greeted each time.
type WelcomedGuild struct {
	GuildID    int64 `gorm:"primary_key;auto_increment:false"`
	WelcomedAt time.Time
}

func (WelcomedGuild) TableName() string {
	return "welcomed_guilds"
}

func (p *Plugin) HandleGuild(evt *eventsystem.EventData) error {
	g := evt.Guild()
	ctx := evt.Context()

	switch g.Kind {
	case bot.GuildAvailable:
		return p.Welcome(ctx, g)
	case bot.GuildRemoved:
		return p.Forget(ctx, g.GuildID)
	}

	return nil
}

// Welcome DMs the guild owner once per guild
func (p *Plugin) Welcome(ctx context.Context, g *bot.GuildEvent) error {
	claimed, err := p.markWelcomed(ctx, g.GuildID)
	if err != nil || !claimed {
		return err
	}

	l := logger.WithField("guild", g.GuildID).WithField("owner", g.OwnerID)
	l.Info("Joined new guild")

	channelID, err := p.Platform.CreateDMChannel(ctx, g.OwnerID)
	if err != nil {
		l.WithError(err).Warn("Failed creating DM channel with guild owner")
		return nil
	}

	_, err = p.Platform.SendMessage(ctx, channelID, &bot.MessageSend{Embed: p.welcomeEmbed()})
	if err != nil {
		// owners with closed DMs are common, nothing to retry
		l.WithError(err).Warn("Failed sending welcome message")
	}

	return nil
}

// Forget removes the marker so the owner is greeted again if the bot is
// added back
func (p *Plugin) Forget(ctx context.Context, guildID int64) error {
	_, err := p.db.ExecContext(ctx, p.db.Rebind("DELETE FROM welcomed_guilds WHERE guild_id = ?"), guildID)
	return errors.WrapIf(err, "delete welcomed guild")
}

// Welcomed reports whether the guild has a marker
func (p *Plugin) Welcomed(ctx context.Context, guildID int64) (bool, error) {
	var n int
	err := p.db.GetContext(ctx, &n, p.db.Rebind("SELECT count(*) FROM welcomed_guilds WHERE guild_id = ?"), guildID)
	return n > 0, errors.WrapIf(err, "count welcomed guilds")
}

// markWelcomed inserts the marker, false means another event got there first
func (p *Plugin) markWelcomed(ctx context.Context, guildID int64) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		p.db.Rebind("INSERT INTO welcomed_guilds (guild_id, welcomed_at) VALUES (?, ?) ON CONFLICT (guild_id) DO NOTHING"),
		guildID, time.Now().UTC())
	if err != nil {
		return false, errors.WrapIf(err, "insert welcomed guild")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.WrapIf(err, "rows affected")
	}

	return n == 1, nil
}

func (p *Plugin) welcomeEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "Welcome to Narc!",
		Fields: []*discordgo.MessageEmbedField{
			{
				Name: "Getting Started",
				Value: "Make sure you leave your DMs to bots enabled so you can receive error information. " +
					"Just run `" + p.Prefix + "setup`, and follow the instructions to get started.",
			},
		},
	}
}
