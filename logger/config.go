package logger

import (
	"os"

	log "github.com/sirupsen/logrus"

	"objectarchive/conf"
)

var logFile *os.File

// Up configures logging from a confMap loaded by the conf package. Archive
// hosts that don't care about logging config can skip this entirely and use
// the package-level defaults (stderr, trace/debug disabled).
func Up(confMap conf.ConfMap) (err error) {
	logFilePath, _ := confMap.FetchOptionValueString("Logging", "LogFilePath")
	if logFilePath != "" {
		logFile, err = os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return err
		}
	}

	logToConsole, err := confMap.FetchOptionValueBool("Logging", "LogToConsole")
	if err != nil {
		logToConsole = false
	}

	if logFilePath != "" {
		if logToConsole {
			log.SetOutput(os.Stderr)
			AddLogTarget(logFile)
		} else {
			log.SetOutput(logFile)
		}
	}

	log.SetLevel(log.DebugLevel)

	traceEnabled, _ := confMap.FetchOptionValueBool("Logging", "TraceLevelLogging")
	SetTraceEnabled(traceEnabled)

	debugEnabled, _ := confMap.FetchOptionValueBool("Logging", "DebugLevelLogging")
	SetDebugEnabled(debugEnabled)

	err = nil
	return
}

// Down closes the log file opened by Up, if any.
func Down() (err error) {
	if logFile != nil {
		err = logFile.Close()
		logFile = nil
	}
	return
}
