package commands

import (
	"context"
	"fmt"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/cirelion/narc/bot"
	"github.com/cirelion/narc/common"
)

// UserError is shown to the user as is and never reported as a bug
type UserError string

func (u UserError) Error() string {
	return string(u)
}

func NewUserErrorf(format string, args ...interface{}) error {
	return UserError(fmt.Sprintf(format, args...))
}

func IsUserError(err error) bool {
	var ue UserError
	return errors.As(err, &ue)
}

// Notice says where to tell a human about a failure
type Notice struct {
	ChannelID int64
	// MessageID is referenced when posting in ChannelID
	MessageID int64
	// UserID is DMed if posting in ChannelID fails
	UserID  int64
	Summary string
}

// SendErrorNotice tells a human that something went wrong, first in the
// channel where it happened and then in the user's DMs. Failing that it's
// only logged.
func SendErrorNotice(ctx context.Context, platform bot.Platform, n Notice, err error) {
	l := logger.WithError(err).WithField("channel", n.ChannelID).WithField("user", n.UserID)

	if !IsUserError(err) {
		common.CaptureError(err, map[string]string{"summary": n.Summary})
	}

	l.Warn("Informing about error")

	if n.ChannelID != 0 {
		_, sendErr := platform.SendMessage(ctx, n.ChannelID, &bot.MessageSend{
			Embed:   errorEmbed(n.Summary, err),
			ReplyTo: n.MessageID,
		})
		if sendErr == nil {
			return
		}

		l = l.WithField("channel_err", sendErr)
		err = errors.WithMessagef(err, "couldn't send error in <#%d>: %v", n.ChannelID, sendErr)
	}

	if n.UserID == 0 {
		l.Error("Couldn't inform anyone about error")
		return
	}

	dm, dmErr := platform.CreateDMChannel(ctx, n.UserID)
	if dmErr == nil {
		_, dmErr = platform.SendMessage(ctx, dm, &bot.MessageSend{Embed: errorEmbed(n.Summary, err)})
	}

	if dmErr != nil {
		l.WithField("dm_err", dmErr).Error("Couldn't inform user about error")
	}
}

func errorEmbed(summary string, err error) *discordgo.MessageEmbed {
	if summary == "" {
		summary = "Something went wrong"
	}

	return &discordgo.MessageEmbed{
		Title: "Bot Error",
		Color: 0xFF0000,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Uh-oh!", Value: summary},
			{Name: "Error", Value: truncate(err.Error(), maxFieldLength)},
		},
	}
}

// maxFieldLength is the most characters discord accepts in an embed field value
const maxFieldLength = 1024

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}

	return string(runes[:n-1]) + "…"
}
