package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Format of log lines.
type Format int

const (
	Text Format = iota // CLI
	JSON               // server
)

// New builds a logger writing to out at the given level.
func New(level string, format Format, out io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(lvl)
	if format == JSON {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableLevelTruncation: true})
	}
	return log, nil
}
