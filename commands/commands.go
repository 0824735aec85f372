package commands

import (
	"context"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/cirelion/narc/bot"
	"github.com/cirelion/narc/bot/eventsystem"
	"github.com/cirelion/narc/common"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("stck", "commands")

type RunFunc func(data *Data) (interface{}, error)

type Command struct {
	Name        string
	Aliases     []string
	Description string
	// Arguments is shown in help, e.g. "<User> [Reason]"
	Arguments    string
	RequireAdmin bool
	GuildOnly    bool
	RunFunc      RunFunc

	plugin common.Plugin
}

func (c *Command) Usage(prefix string) string {
	if c.Arguments == "" {
		return prefix + c.Name
	}

	return prefix + c.Name + " " + c.Arguments
}

// Data is what a command gets to work with
type Data struct {
	Platform bot.Platform
	Message  *bot.Message
	Author   *bot.User
	GuildID  int64
	Cmd      *Command
	Prefix   string
	Args     []string

	ctx context.Context
}

func (d *Data) Context() context.Context {
	return d.ctx
}

// Rest joins every argument from i onwards
func (d *Data) Rest(i int) string {
	if i >= len(d.Args) {
		return ""
	}

	return strings.Join(d.Args[i:], " ")
}

// PrefixFunc resolves the configured prefix of a guild, "" means default
type PrefixFunc func(ctx context.Context, guildID int64) (string, error)

type Router struct {
	Platform      bot.Platform
	DefaultPrefix string
	GuildPrefix   PrefixFunc

	commands map[string]*Command
	list     []*Command
}

func NewRouter(platform bot.Platform, defaultPrefix string, guildPrefix PrefixFunc) *Router {
	return &Router{
		Platform:      platform,
		DefaultPrefix: defaultPrefix,
		GuildPrefix:   guildPrefix,
		commands:      make(map[string]*Command),
	}
}

func (r *Router) AddCommands(p common.Plugin, cmds ...*Command) {
	for _, cmd := range cmds {
		cmd.plugin = p
		r.list = append(r.list, cmd)
		r.commands[strings.ToLower(cmd.Name)] = cmd
		for _, alias := range cmd.Aliases {
			r.commands[strings.ToLower(alias)] = cmd
		}
	}
}

// Commands returns every registered command in registration order
func (r *Router) Commands() []*Command {
	return r.list
}

// Prefix returns the prefix commands use in the guild
func (r *Router) Prefix(ctx context.Context, guildID int64) string {
	if guildID == 0 || r.GuildPrefix == nil {
		return r.DefaultPrefix
	}

	prefix, err := r.GuildPrefix(ctx, guildID)
	if err != nil {
		logger.WithError(err).WithField("guild", guildID).Error("Failed retrieving guild prefix")
		return r.DefaultPrefix
	}

	if prefix == "" {
		return r.DefaultPrefix
	}

	return prefix
}

func (r *Router) HandleMessageCreate(evt *eventsystem.EventData) error {
	msg := evt.Message()
	if msg.Author == nil || msg.Author.Bot {
		return nil
	}

	ctx := evt.Context()
	prefix := r.Prefix(ctx, msg.GuildID)

	body, ok := r.stripPrefix(msg.Content, prefix)
	if !ok {
		return nil
	}

	fields := strings.Fields(body)
	if len(fields) == 0 {
		return nil
	}

	cmd, ok := r.commands[strings.ToLower(fields[0])]
	if !ok {
		return nil
	}

	data := &Data{
		Platform: r.Platform,
		Message:  msg,
		Author:   msg.Author,
		GuildID:  msg.GuildID,
		Cmd:      cmd,
		Prefix:   prefix,
		Args:     fields[1:],
		ctx:      ctx,
	}

	r.run(data)
	return nil
}

func (r *Router) stripPrefix(content, prefix string) (string, bool) {
	if prefix != "" && strings.HasPrefix(content, prefix) {
		return content[len(prefix):], true
	}

	botID := strconv.FormatInt(r.Platform.BotUserID(), 10)
	for _, mention := range []string{"<@" + botID + ">", "<@!" + botID + ">"} {
		if strings.HasPrefix(content, mention) {
			return content[len(mention):], true
		}
	}

	return "", false
}

func (r *Router) run(data *Data) {
	ctx := data.Context()
	l := logger.WithField("cmd", data.Cmd.Name).WithField("user", data.Author.ID)
	if data.Cmd.plugin != nil {
		l = common.GetPluginLogger(data.Cmd.plugin).WithField("cmd", data.Cmd.Name).WithField("user", data.Author.ID)
	}

	resp, err := r.checkAndRun(data)
	if err != nil {
		if IsUserError(err) {
			resp = err.Error()
		} else {
			l.WithError(err).Error("Failed running command")
			SendErrorNotice(ctx, r.Platform, Notice{
				ChannelID: data.Message.ChannelID,
				MessageID: data.Message.ID,
				UserID:    data.Author.ID,
				Summary:   "Something went wrong while running `" + data.Cmd.Name + "`",
			}, err)
			return
		}
	}

	send := &bot.MessageSend{ReplyTo: data.Message.ID}
	switch t := resp.(type) {
	case nil:
		err = r.Platform.AddReaction(ctx, data.Message.ChannelID, data.Message.ID, bot.UnicodeEmoji("✅"))
		if err != nil {
			l.WithError(err).Warn("Failed adding confirmation reaction")
		}
		return
	case string:
		if t == "" {
			return
		}
		send.Content = t
	case *discordgo.MessageEmbed:
		send.Embed = t
	default:
		l.Errorf("Unknown command response type %T", resp)
		return
	}

	if _, err = r.Platform.SendMessage(ctx, data.Message.ChannelID, send); err != nil {
		l.WithError(err).Error("Failed sending command response")
	}
}

func (r *Router) checkAndRun(data *Data) (interface{}, error) {
	if data.Cmd.GuildOnly && data.GuildID == 0 {
		return nil, UserError("This command can only be used in a server")
	}

	if data.Cmd.RequireAdmin {
		perms, err := r.Platform.MemberPermissions(data.Context(), data.Message.ChannelID, data.Author.ID)
		if err != nil {
			return nil, err
		}

		if perms&bot.PermissionAdministrator == 0 {
			return nil, UserError("You need the Administrator permission to use this command")
		}
	}

	return data.Cmd.RunFunc(data)
}
