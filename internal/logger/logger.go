package logger

import (
	"log"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	InfoLogger  *log.Logger
	ErrorLogger *log.Logger
	DebugLogger *log.Logger
	logOutput   *lumberjack.Logger
	debug       bool
)

// Init initializes the loggers on a size/age-rotated log file.
func Init() {
	logOutput = &lumberjack.Logger{
		Filename: viper.GetString("log_file"),
		MaxSize:  viper.GetInt("log_max_size_mb"), // megabytes
		MaxAge:   viper.GetInt("log_max_age_days"), // days
	}

	InfoLogger = log.New(logOutput, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile)
	ErrorLogger = log.New(logOutput, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
	DebugLogger = log.New(logOutput, "DEBUG: ", log.Ldate|log.Ltime|log.Lshortfile)
	debug = viper.GetString("log_level") == "debug"
}

// RotateLog forces rotation of the current log file.
func RotateLog() error {
	if logOutput == nil {
		return nil
	}
	return logOutput.Rotate()
}

// Cleanup closes the log file when the application is done using it
func Cleanup() {
	if logOutput != nil {
		logOutput.Close()
	}
}

// Info logs an informational message to the log file
func Info(v ...interface{}) {
	if InfoLogger != nil {
		InfoLogger.Println(v...)
	}
}

// Error logs an error message to the log file
func Error(v ...interface{}) {
	if ErrorLogger != nil {
		ErrorLogger.Println(v...)
	}
}

// Debug logs a debug message when log_level is debug
func Debug(v ...interface{}) {
	if debug && DebugLogger != nil {
		DebugLogger.Println(v...)
	}
}
