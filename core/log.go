// core/log.go
package core

import logrus "github.com/sirupsen/logrus"

// log is the package-wide structured logger for the synchronous container
// path (value/pool/schema/container operations). Mirrors the teacher's
// constructor idiom (core/storage.go's NewStorage, core/initialization_replication.go's
// NewInitService): accept an injected *logrus.Logger, falling back to
// logrus.StandardLogger() when nil. The asynchronous worker-pool subsystem
// (core/async.go) uses zap instead; see SPEC_FULL.md's ambient stack section
// for the rationale behind the split.
var log = logrus.StandardLogger()

// SetLogger replaces the package-wide logger. Passing nil restores
// logrus.StandardLogger(). Intended for host applications that want container
// events folded into their own logrus configuration (formatter, output,
// hooks) rather than the default.
func SetLogger(l *logrus.Logger) {
	if l == nil {
		l = logrus.StandardLogger()
	}
	log = l
}
