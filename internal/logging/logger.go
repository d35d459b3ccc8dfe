package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the process logger: JSON to stdout, level parsed from level (info on garbage).
func New(service, level string) *logrus.Entry {
	return newWithOutput(service, level, os.Stdout)
}

func newWithOutput(service, level string, out io.Writer) *logrus.Entry {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetOutput(out)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	return l.WithField("service", service)
}
