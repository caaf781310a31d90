package stagehand

import "log"

// Logger is the minimal sink the runtime writes observability records
// to (shutdown, undeliverable envelopes). log.Logger satisfies it
// directly; tests and callers that want to capture or silence output
// can supply their own.
type Logger interface {
	Printf(format string, args ...any)
}

type stdLogger struct{ *log.Logger }

func defaultLogger() Logger {
	return stdLogger{log.Default()}
}
