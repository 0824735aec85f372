package commands

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

// HelpCommand lists every command registered on r
func HelpCommand(r *Router) *Command {
	return &Command{
		Name:        "Help",
		Aliases:     []string{"h", "commands"},
		Description: "Shows this list",
		RunFunc: func(data *Data) (interface{}, error) {
			var sb strings.Builder
			for _, cmd := range r.Commands() {
				sb.WriteString("`" + cmd.Usage(data.Prefix) + "`")
				if cmd.Description != "" {
					sb.WriteString(" - " + cmd.Description)
				}
				sb.WriteString("\n")
			}

			return &discordgo.MessageEmbed{
				Title:       "Commands",
				Description: sb.String(),
				Footer: &discordgo.MessageEmbedFooter{
					Text: "You can also mention me instead of using the prefix",
				},
			}, nil
		},
	}
}
