package ulogger

import (
	"fmt"
	"runtime"
	"sync/atomic"
)

type TestingT interface {
	Errorf(format string, args ...interface{})
	FailNow()
	Logf(format string, args ...any)
}

type tHelper = interface {
	Helper()
}

// ErrorTestLogger drops everything below error level and reports errors
// through the test, failing it unless told otherwise.
type ErrorTestLogger struct {
	t            TestingT
	failOnError  atomic.Bool
	shutdown     atomic.Bool
	errorsLogged atomic.Int64
}

func NewErrorTestLogger(t TestingT) *ErrorTestLogger {
	return &ErrorTestLogger{t: t}
}

// FailOnError makes any logged error fail the test.
func (l *ErrorTestLogger) FailOnError(fail bool) {
	l.failOnError.Store(fail)
}

// Shutdown stops the logger from touching the test after cleanup started.
func (l *ErrorTestLogger) Shutdown() {
	l.shutdown.Store(true)
}

// ErrorCount returns how many errors were logged.
func (l *ErrorTestLogger) ErrorCount() int64 {
	return l.errorsLogged.Load()
}

func (l *ErrorTestLogger) LogLevel() int {
	return 0
}

func (l *ErrorTestLogger) SetLogLevel(level string) {}

func (l *ErrorTestLogger) New(service string, options ...Option) Logger {
	return l
}

func (l *ErrorTestLogger) Duplicate(options ...Option) Logger {
	return l
}

func (l *ErrorTestLogger) Debugf(format string, args ...interface{}) {}

func (l *ErrorTestLogger) Infof(format string, args ...interface{}) {}

func (l *ErrorTestLogger) Warnf(format string, args ...interface{}) {}

func (l *ErrorTestLogger) Errorf(format string, args ...interface{}) {
	l.report("ERR_LEVEL", format, args...)
}

func (l *ErrorTestLogger) Fatalf(format string, args ...interface{}) {
	l.report("FATAL_LEVEL", format, args...)
}

func (l *ErrorTestLogger) report(level string, format string, args ...interface{}) {
	l.errorsLogged.Add(1)

	if l.shutdown.Load() {
		return
	}

	if h, ok := l.t.(tHelper); ok {
		h.Helper()
	}

	_, file, line, _ := runtime.Caller(2)
	prefix := fmt.Sprintf("%s:%d: %s %s", file, line, level, format)

	if l.failOnError.Load() {
		l.t.Errorf(prefix, args...)
		return
	}

	l.t.Logf(prefix, args...)
}
