package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var (
	logg *logrus.Logger
)

func GetLogger() *logrus.Logger {
	return logg
}

func init() {
	logg = logrus.New()
	configureLogger(logg)
}

func configureLogger(l *logrus.Logger) {
	// LOG_LEVEL may only be set in .env
	godotenv.Load()
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(logLevelFromEnv())
	l.SetOutput(os.Stdout)
}

func logLevelFromEnv() logrus.Level {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func LogError(logger logrus.FieldLogger, moduleName string, funcName string, context string, data any, err error) {
	fields := logrus.Fields{
		"module":   moduleName,
		"funcName": funcName,
		"context":  context,
	}
	if data != nil {
		fields["data"] = data
	}
	logger.WithFields(fields).Error(err.Error())
}
