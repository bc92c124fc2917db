package logging

import (
	"fmt"
	"os"
)

// Fatalf logs at Error level and exits the process. Only main packages should
// call this; library code reports errors to its caller instead.
func (log *Logger) Fatalf(format string, v ...interface{}) {
	log.Log(Error, 1, format, v...)
	os.Exit(1)
}

// Printf logs at Info level, for callers that expect a *log.Logger-like API.
func (log *Logger) Printf(format string, v ...interface{}) {
	log.Log(Info, 1, format, v...)
}

// Println logs at Info level.
func (log *Logger) Println(v ...interface{}) {
	log.Log(Info, 1, "%s", fmt.Sprintln(v...))
}
