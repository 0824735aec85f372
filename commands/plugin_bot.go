package commands

import (
	"github.com/cirelion/narc/bot/eventsystem"
	"github.com/cirelion/narc/common"
)

// Plugin feeds created messages into the router and owns the help command
type Plugin struct {
	Router *Router
}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Commands",
		SysName:  "commands",
		Category: common.PluginCategoryCore,
	}
}

func RegisterPlugin(r *Router) *Plugin {
	p := &Plugin{Router: r}
	common.RegisterPlugin(p)
	return p
}

func (p *Plugin) BotInit(events *eventsystem.System) {
	p.Router.AddCommands(p, HelpCommand(p.Router))
	events.AddHandlerAsync(p, p.Router.HandleMessageCreate, eventsystem.EventMessageCreate)
}
