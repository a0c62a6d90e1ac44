// Package logger provides logging wrappers.
//
// These wrappers allow the archive and overlay packages to standardize
// logging while still using a third-party logging package.
//
// This package is currently implemented on top of the sirupsen/logrus package:
//   https://github.com/sirupsen/logrus
//
// The APIs here add package and calling function to all logs.  Where
// possible, fields passed to logs are parameterized, to standardize log
// formatting and make log searches based on these fields easier.
//
// Trace and debug logs are globally gated: the store and overlay call
// Tracef() on every buffer eviction and every inbound overlay message, which
// would otherwise be far too noisy for steady-state operation.
package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Level is the set of logging levels understood by this package.
//
// We have more detailed logging levels than the logrus log package, so when
// logging we map from our levels to the logrus ones before calling logrus
// APIs.
type Level int

const (
	// PanicLevel corresponds to logrus.PanicLevel; logrus will log and then call panic with the log message.
	PanicLevel Level = iota
	// FatalLevel corresponds to logrus.FatalLevel; logrus will log and then call os.Exit(1).
	FatalLevel
	// ErrorLevel corresponds to logrus.ErrorLevel.
	ErrorLevel
	// WarnLevel corresponds to logrus.WarnLevel.
	WarnLevel
	// InfoLevel corresponds to logrus.InfoLevel; general operational entries.
	InfoLevel
	// TraceLevel traces the success path through the store and overlay.
	// Only emitted (at logrus.InfoLevel) when trace logging is enabled.
	TraceLevel
	// DebugLevel is for very verbose internal logging, gated the same way as TraceLevel.
	DebugLevel
)

var traceLevelEnabled = false
var debugLevelEnabled = false
var disableLoggingForTesting = false

// SetTraceEnabled turns TraceLevel logging on or off process-wide.
func SetTraceEnabled(enabled bool) {
	traceLevelEnabled = enabled
}

// SetDebugEnabled turns DebugLevel logging on or off process-wide.
func SetDebugEnabled(enabled bool) {
	debugLevelEnabled = enabled
}

// SetDisabledForTesting silences all output; used by package test suites that
// intentionally exercise error paths and don't want log noise in `go test -v`.
func SetDisabledForTesting(disabled bool) {
	disableLoggingForTesting = disabled
}

const errorKey = "error"

func logEnabled(level Level) bool {
	if disableLoggingForTesting {
		return false
	}
	if level == TraceLevel && !traceLevelEnabled {
		return false
	}
	if level == DebugLevel && !debugLevelEnabled {
		return false
	}
	return true
}

func toLogrusLevel(level Level) log.Level {
	switch level {
	case PanicLevel:
		return log.PanicLevel
	case FatalLevel:
		return log.FatalLevel
	case ErrorLevel:
		return log.ErrorLevel
	case WarnLevel:
		return log.WarnLevel
	case TraceLevel, InfoLevel:
		return log.InfoLevel
	case DebugLevel:
		return log.DebugLevel
	default:
		return log.InfoLevel
	}
}

// callerPackageAndFunc walks back to the caller of the exported log
// function (two frames up: this helper and the Xxxf wrapper) and returns
// "pkg.Func" the way logrus will print it.
func callerPackageAndFunc() string {
	pc, _, _, ok := runtime.Caller(3)
	if !ok {
		return "unknown"
	}
	full := runtime.FuncForPC(pc).Name()
	if idx := strings.LastIndex(full, "/"); idx >= 0 {
		full = full[idx+1:]
	}
	return full
}

func entry(level Level) *log.Entry {
	return log.WithField("caller", callerPackageAndFunc())
}

func emit(level Level, logString string) {
	if !logEnabled(level) {
		return
	}
	e := entry(level)
	switch toLogrusLevel(level) {
	case log.PanicLevel:
		e.Panic(logString)
	case log.FatalLevel:
		e.Fatal(logString)
	case log.ErrorLevel:
		e.Error(logString)
	case log.WarnLevel:
		e.Warn(logString)
	case log.DebugLevel:
		e.Debug(logString)
	default:
		e.Info(logString)
	}
}

func emitWithError(level Level, err error, logString string) {
	if !logEnabled(level) {
		return
	}
	e := entry(level).WithField(errorKey, err)
	switch toLogrusLevel(level) {
	case log.PanicLevel:
		e.Panic(logString)
	case log.FatalLevel:
		e.Fatal(logString)
	case log.ErrorLevel:
		e.Error(logString)
	case log.WarnLevel:
		e.Warn(logString)
	case log.DebugLevel:
		e.Debug(logString)
	default:
		e.Info(logString)
	}
}

func Errorf(format string, args ...interface{}) { emit(ErrorLevel, fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...interface{})  { emit(WarnLevel, fmt.Sprintf(format, args...)) }
func Infof(format string, args ...interface{})  { emit(InfoLevel, fmt.Sprintf(format, args...)) }
func Tracef(format string, args ...interface{}) { emit(TraceLevel, fmt.Sprintf(format, args...)) }
func Debugf(format string, args ...interface{}) { emit(DebugLevel, fmt.Sprintf(format, args...)) }
func Fatalf(format string, args ...interface{}) { emit(FatalLevel, fmt.Sprintf(format, args...)) }
func Panicf(format string, args ...interface{}) { emit(PanicLevel, fmt.Sprintf(format, args...)) }

func ErrorfWithError(err error, format string, args ...interface{}) {
	emitWithError(ErrorLevel, err, fmt.Sprintf(format, args...))
}
func WarnfWithError(err error, format string, args ...interface{}) {
	emitWithError(WarnLevel, err, fmt.Sprintf(format, args...))
}
func InfofWithError(err error, format string, args ...interface{}) {
	emitWithError(InfoLevel, err, fmt.Sprintf(format, args...))
}
func TracefWithError(err error, format string, args ...interface{}) {
	emitWithError(TraceLevel, err, fmt.Sprintf(format, args...))
}
func PanicfWithError(err error, format string, args ...interface{}) {
	emitWithError(PanicLevel, err, fmt.Sprintf(format, args...))
}

// AddLogTarget adds an additional io.Writer that log output is mirrored to,
// on top of the default os.Stderr target.
func AddLogTarget(writer io.Writer) {
	log.SetOutput(io.MultiWriter(os.Stderr, writer))
}

func init() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}
