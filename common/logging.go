package common

import (
	"io"
	"os"

	"emperror.dev/errors"
	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
)

// SetupLogging configures the global logrus logger, optionally teeing into a
// rotated log file.
func SetupLogging(conf *CoreConfig) error {
	level, err := logrus.ParseLevel(conf.LogLevel)
	if err != nil {
		return errors.WrapIf(err, "log level")
	}

	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if conf.LogFile == "" {
		logrus.SetOutput(os.Stderr)
		return nil
	}

	logrus.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
		Filename:   conf.LogFile,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     28,
		Compress:   true,
	}))

	return nil
}
