package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"emperror.dev/errors"
	"github.com/cirelion/narc/bot/discord"
	"github.com/cirelion/narc/bot/eventsystem"
	"github.com/cirelion/narc/commands"
	"github.com/cirelion/narc/common"
	"github.com/cirelion/narc/reports"
	"github.com/cirelion/narc/welcome"
	"github.com/jinzhu/gorm"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type runCommand struct{}

func (c *runCommand) Synopsis() string {
	return "Connects to discord and runs the bot"
}

func (c *runCommand) Help() string {
	return strings.TrimSpace(`
Usage: narc run [-config path]

  Connects to discord and handles reports until interrupted.

  Settings are read from the optional yaml config file and then
  overridden by NARC_* environment variables.
`)
}

func (c *runCommand) Run(args []string) int {
	conf, err := loadConfig("run", args)
	if err != nil {
		logrus.WithError(err).Error("Failed loading config")
		return 1
	}

	if err = run(conf); err != nil {
		logrus.WithError(err).Error("Bot stopped")
		common.CaptureError(err, map[string]string{"stage": "run"})
		common.FlushSentry()
		return 1
	}

	return 0
}

func run(conf *common.CoreConfig) error {
	if conf.DiscordToken == "" {
		return errors.NewPlain("no discord token configured (NARC_DISCORD_TOKEN)")
	}

	db, err := common.ConnectDB(conf.DatabaseDialect, conf.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	events := eventsystem.NewSystem()
	platform, err := discord.New(conf.DiscordToken, events)
	if err != nil {
		return err
	}

	cmds := commands.NewRouter(platform, conf.DefaultPrefix, nil)
	reportsPlugin, err := registerPlugins(platform, db, conf, events, cmds)
	if err != nil {
		return err
	}
	defer reportsPlugin.Stop()

	stopMetrics := serveMetrics(conf.MetricsAddr)
	defer stopMetrics()

	if err = platform.Open(); err != nil {
		return err
	}

	logrus.Info("Narc is running, press ctrl-c to exit")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logrus.Info("Shutting down")
	err = platform.Close()

	// let running handlers finish their remote calls before the db closes
	events.Wait()
	return err
}

func registerPlugins(platform *discord.Platform, db *gorm.DB, conf *common.CoreConfig, events *eventsystem.System, cmds *commands.Router) (*reports.Plugin, error) {
	commands.RegisterPlugin(cmds).BotInit(events)

	reportsPlugin := reports.New(platform, db, conf)
	if err := reports.RegisterPlugin(reportsPlugin); err != nil {
		return nil, err
	}
	reportsPlugin.BotInit(events, cmds)
	cmds.GuildPrefix = reportsPlugin.Configs.Prefix

	welcomePlugin := welcome.New(platform, db, conf.DefaultPrefix)
	if err := welcome.RegisterPlugin(welcomePlugin); err != nil {
		return nil, err
	}
	welcomePlugin.BotInit(events)

	return reportsPlugin, nil
}

// serveMetrics exposes the prometheus registry on addr, if set
func serveMetrics(addr string) (stop func()) {
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logrus.WithField("addr", addr).Info("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("Metrics server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

// loadConfig parses the shared -config flag and sets up logging and sentry
func loadConfig(name string, args []string) (*common.CoreConfig, error) {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	path := flags.String("config", os.Getenv("NARC_CONFIG"), "path to the yaml config file")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	conf, err := common.LoadCoreConfig(*path)
	if err != nil {
		return nil, err
	}

	if err = common.SetupLogging(conf); err != nil {
		return nil, err
	}

	return conf, common.InitSentry(conf, version)
}
