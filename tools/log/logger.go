package log

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var WarnLevel = logrus.WarnLevel
var InfoLevel = logrus.InfoLevel
var DebugLevel = logrus.DebugLevel
var ErrorLevel = logrus.ErrorLevel
var FatalLevel = logrus.FatalLevel
var PanicLevel = logrus.PanicLevel

type TextFormatter = logrus.TextFormatter
type Level = logrus.Level

// CheckErr logs err at the given level when it is not nil.
func CheckErr(level logrus.Level, err error) {
	if err != nil {
		Log(level, err)
	}
}

func Log(level logrus.Level, messages ...interface{}) {
	switch level {
	case logrus.InfoLevel:
		logrus.Info(messages...)
	case logrus.WarnLevel:
		logrus.Warn(messages...)
	case logrus.ErrorLevel:
		logrus.Error(messages...)
	case logrus.FatalLevel:
		logrus.Fatal(messages...)
	case logrus.PanicLevel:
		logrus.Panic(messages...)
	case logrus.DebugLevel:
		fallthrough
	default:
		logrus.Debug(messages...)
	}
}

func SetFormatter(formatter logrus.Formatter) {
	logrus.SetFormatter(formatter)
}

func SetLevel(level logrus.Level) {
	logrus.SetLevel(level)
}

func WithField(key string, value interface{}) *logrus.Entry {
	return logrus.WithField(key, value)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return logrus.WithFields(fields)
}

func Info(messages ...interface{})  { logrus.Info(messages...) }
func Warn(messages ...interface{})  { logrus.Warn(messages...) }
func Error(messages ...interface{}) { logrus.Error(messages...) }
func Fatal(messages ...interface{}) { logrus.Fatal(messages...) }
func Debug(messages ...interface{}) { logrus.Debug(messages...) }

func Infof(format string, args ...interface{})  { logrus.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { logrus.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { logrus.Errorf(format, args...) }
func Fatalf(format string, args ...interface{}) { logrus.Fatalf(format, args...) }

// dailyWriter appends to dir/<name>/<name>.log.<YYYY-MM-DD>, reopening
// the file when the UTC date rolls over.
type dailyWriter struct {
	mu   sync.Mutex
	dir  string
	name string
	day  string
	file *os.File
}

func (w *dailyWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	day := time.Now().UTC().Format("2006-01-02")
	if w.file == nil || day != w.day {
		if w.file != nil {
			w.file.Close()
		}
		file, err := os.OpenFile(DailyFile(w.dir, w.name, day),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return 0, err
		}
		w.file = file
		w.day = day
	}
	return w.file.Write(p)
}

// DailyFile returns the log file path for one UTC day. The notifier
// uses it to read back yesterday's log.
func DailyFile(dir, name, day string) string {
	return filepath.Join(dir, name, name+".log."+day)
}

// SetOutputFile tees the process log to stderr and a per-day file
// under dir/name/.
func SetOutputFile(dir, name string) error {
	err := os.MkdirAll(filepath.Join(dir, name), 0o755)
	if err != nil {
		return err
	}
	logrus.SetOutput(io.MultiWriter(os.Stderr, &dailyWriter{dir: dir, name: name}))
	return nil
}
