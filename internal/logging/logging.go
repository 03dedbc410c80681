// Package logging — именованные логгеры модулей поверх logrus.
package logging

import (
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// loggers — name → *Logger; NewLogger с тем же именем возвращает тот же логгер.
var loggers sync.Map

var base = logrus.New()

func init() {
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// Logger — логгер модуля; имя уходит в поле module.
type Logger struct {
	name  string
	entry *logrus.Entry
}

// NewLogger возвращает логгер модуля name.
func NewLogger(name string) *Logger {
	if l, ok := loggers.Load(name); ok {
		return l.(*Logger)
	}
	l := &Logger{name: name, entry: base.WithField("module", name)}
	actual, _ := loggers.LoadOrStore(name, l)
	return actual.(*Logger)
}

// Name — имя модуля.
func (l *Logger) Name() string { return l.name }

func (l *Logger) Info(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.entry.Info(fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.entry.Warn(fmt.Sprintf(format, args...))
}

// Error выводится и в режиме Quiet.
func (l *Logger) Error(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.entry.Error(fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.entry.Debug(fmt.Sprintf(format, args...))
}

// SetLevel задаёт уровень по имени (debug, info, warn, error).
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	base.SetLevel(lvl)
	return nil
}

// SetQuiet при true оставляет только ошибки.
func SetQuiet(quiet bool) {
	if quiet {
		base.SetLevel(logrus.ErrorLevel)
	}
}

// SetOutput перенаправляет вывод всех логгеров.
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

// SetJSON включает JSON-формат записей.
func SetJSON(on bool) {
	if on {
		base.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}
