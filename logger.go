package governor

import (
	"fmt"
	"log"
)

// Logger interface is provided
// to allow you to customize the logging internally done
// by the governors.
//
// The default implementation logs to the "log" standard module
// via log.Default().
//
// If you want to disable the default logger
// you can pass an instance of governor.NewNoOpLogger()
// to the governor constructor.
type Logger interface {
	Debug(string)
	Info(string)
	Warning(string)
	Error(string)
}

type defaultLogger struct {
}

func (l *defaultLogger) Debug(text string) {
	log.Default().Println(fmt.Sprintf("governor [debug] %v", text))
}
func (l *defaultLogger) Info(text string) {
	log.Default().Println(fmt.Sprintf("governor [info] %v", text))
}
func (l *defaultLogger) Warning(text string) {
	log.Default().Println(fmt.Sprintf("governor [WARNING] %v", text))
}
func (l *defaultLogger) Error(text string) {
	log.Default().Println(fmt.Sprintf("governor [ERROR] %v", text))
}

func NewNoOpLogger() Logger {
	return &noOpLogger{}
}

type noOpLogger struct {
}

func (l *noOpLogger) Debug(text string) {
	// NOP
}
func (l *noOpLogger) Info(text string) {
	// NOP
}
func (l *noOpLogger) Warning(text string) {
	// NOP
}
func (l *noOpLogger) Error(text string) {
	// NOP
}
