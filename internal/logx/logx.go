// Package logx holds the logrus setup shared by the commands.
package logx

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// DefaultSetup configures logrus with a JSON formatter on stderr and the given
// level.
func DefaultSetup(logLevel string) error {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stderr)
	return nil
}

// LogReturnedErr calls fn and logs any error it returns. It is meant for
// deferred Close calls whose error would otherwise be dropped.
func LogReturnedErr(fn func() error, fields log.Fields, msg string) {
	if err := fn(); err != nil {
		if fields == nil {
			fields = log.Fields{}
		}
		fields["error"] = err
		log.WithFields(fields).Error(msg)
	}
}
