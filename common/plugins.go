package common

import (
	"github.com/sirupsen/logrus"
)

type PluginCategory struct {
	Name  string
	Order int
}

var (
	PluginCategoryCore       = &PluginCategory{Name: "Core", Order: 0}
	PluginCategoryModeration = &PluginCategory{Name: "Moderation", Order: 10}
	PluginCategoryMisc       = &PluginCategory{Name: "Misc", Order: 20}
)

// PluginInfo holds basic plugin info
type PluginInfo struct {
	Name     string // Human-readable name of the plugin
	SysName  string // snake_case version of the name in lower case
	Category *PluginCategory
}

// Plugin represents a plugin, all plugins needs to implement this at a bare minimum
type Plugin interface {
	PluginInfo() *PluginInfo
}

var Plugins []Plugin

// RegisterPlugin registers a plugin, should be called when the bot is starting up
func RegisterPlugin(plugin Plugin) {
	Plugins = append(Plugins, plugin)
	GetPluginLogger(plugin).Info("Registered plugin")
}

// GetPluginLogger returns a logger tagged with the plugin's sysname
func GetPluginLogger(plugin Plugin) *logrus.Entry {
	info := plugin.PluginInfo()
	return logrus.WithField("p", info.SysName)
}
