// Package logging provides the process-wide logger facade used by every
// engine package in this module.
//
// Grounded on rpc/common/logger.go: the teacher tames Dragonboat's own
// ILogger interface with a custom factory so all of its subsystems log in
// one consistent format. This package reuses exactly that mechanism, but
// as the primary logging facade for the storage engine itself rather than
// a Dragonboat shim: each engine package that logs calls
// logger.GetLogger("engine/<pkg>") and gets a logger created by the factory
// installed here.
package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/lni/dragonboat/v4/logger"
)

// engineLogger implements logger.ILogger with "LEVEL | package | message" formatting.
type engineLogger struct {
	name   string
	level  logger.LogLevel
	logger *log.Logger
}

func (l *engineLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *engineLogger) Debugf(format string, args ...interface{}) {
	if l.level >= logger.DEBUG {
		l.emit("DEBUG", format, args...)
	}
}

func (l *engineLogger) Infof(format string, args ...interface{}) {
	if l.level >= logger.INFO {
		l.emit("INFO", format, args...)
	}
}

func (l *engineLogger) Warningf(format string, args ...interface{}) {
	if l.level >= logger.WARNING {
		l.emit("WARN", format, args...)
	}
}

func (l *engineLogger) Errorf(format string, args ...interface{}) {
	if l.level >= logger.ERROR {
		l.emit("ERROR", format, args...)
	}
}

func (l *engineLogger) Panicf(format string, args ...interface{}) {
	if l.level >= logger.CRITICAL {
		panic(fmt.Sprintf(format, args...))
	}
}

func (l *engineLogger) emit(levelStr, format string, args ...interface{}) {
	l.logger.Printf("%-5s | %-20s | %s", levelStr, l.name, fmt.Sprintf(format, args...))
}

// NewLogger is a logger.Factory: it's installed once via Init and from
// then on every logger.GetLogger(name) call in the process (Dragonboat's
// own included) routes through it.
func NewLogger(pkgName string) logger.ILogger {
	return &engineLogger{
		name:   pkgName,
		level:  logger.INFO,
		logger: log.New(os.Stdout, "", log.Ldate|log.Ltime),
	}
}

var initOnce sync.Once

// Init installs the engine logger factory and sets the level for every
// named logger the engine uses. Safe to call more than once; only the
// first call has effect.
func Init(level string) {
	initOnce.Do(func() {
		logger.SetLoggerFactory(NewLogger)
	})
	lvl := ParseLevel(level)
	for _, name := range []string{
		"engine/wal", "engine/blockcache", "engine/sortedfile", "engine/blockcodec",
		"engine/membuffer", "engine/famstore", "engine/region", "engine/scheduler",
		"engine/regionfs", "engine/replication", "engine/observer", "engine/snapshot",
		"engine/qos", "engine/bootstrap", "catalog", "catalog/dcatalog",
		"catalog/catalogstore", "engined/replication", "store", "rpc",
	} {
		logger.GetLogger(name).SetLevel(lvl)
	}
}

// ParseLevel converts a case-insensitive level name into a logger.LogLevel,
// defaulting to INFO for unrecognized input rather than panicking, since
// this is consulted from user-supplied configuration (spec.md §6) and a
// typo in a config file should not take the node down.
func ParseLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG
	case "warning", "warn":
		return logger.WARNING
	case "error":
		return logger.ERROR
	case "critical":
		return logger.CRITICAL
	default:
		return logger.INFO
	}
}

// Get returns a named logger, for packages that prefer not to import
// Dragonboat's logger package directly.
func Get(name string) logger.ILogger {
	return logger.GetLogger(name)
}
