package main

import (
	"strings"

	"github.com/cirelion/narc/common"
	"github.com/cirelion/narc/reports"
	"github.com/cirelion/narc/welcome"
	"github.com/sirupsen/logrus"
)

type migrateCommand struct{}

func (c *migrateCommand) Synopsis() string {
	return "Creates or updates the database schema"
}

func (c *migrateCommand) Help() string {
	return strings.TrimSpace(`
Usage: narc migrate [-config path]

  Creates missing tables, columns and indexes. The bot does this on
  start as well, this is for preparing a database ahead of a deploy.
`)
}

func (c *migrateCommand) Run(args []string) int {
	conf, err := loadConfig("migrate", args)
	if err != nil {
		logrus.WithError(err).Error("Failed loading config")
		return 1
	}
	defer common.FlushSentry()

	db, err := common.ConnectDB(conf.DatabaseDialect, conf.DatabaseURL)
	if err != nil {
		logrus.WithError(err).Error("Failed connecting to the database")
		return 1
	}
	defer db.Close()

	if err = reports.Migrate(db); err != nil {
		logrus.WithError(err).Error("Failed migrating reports")
		return 1
	}

	if err = welcome.Migrate(db); err != nil {
		logrus.WithError(err).Error("Failed migrating welcome")
		return 1
	}

	logrus.Info("Database is up to date")
	return 0
}
