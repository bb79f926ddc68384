package jujuci

import (
	"fmt"
	"strings"

	"github.com/monshunter/ohmyremote/pkg/log"
)

// retryLogger routes retryablehttp messages to the package logger. Failed
// attempts are reported as warnings since a later retry may succeed.
type retryLogger struct{}

func (retryLogger) Error(msg string, keysAndValues ...interface{}) {
	log.Warn(msg + formatFields(keysAndValues))
}

func (retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	log.Warn(msg + formatFields(keysAndValues))
}

func (retryLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug(msg + formatFields(keysAndValues))
}

func (retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	log.Debug(msg + formatFields(keysAndValues))
}

func formatFields(keysAndValues []interface{}) string {
	var b strings.Builder
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fmt.Fprintf(&b, " %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	return b.String()
}
