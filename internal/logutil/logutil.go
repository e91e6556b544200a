// Package logutil writes single-line JSON log records through the standard logger.
package logutil

import (
	"encoding/json"
	"log"
	"time"
)

// Fields carries structured log attributes.
type Fields map[string]interface{}

// Info logs a structured info message.
func Info(msg string, fields Fields) {
	logJSON("info", msg, fields)
}

// Warn logs a structured warning.
func Warn(msg string, fields Fields) {
	logJSON("warn", msg, fields)
}

// Error logs a structured error message including the error string.
func Error(msg string, err error, fields Fields) {
	merged := Fields{}
	for k, v := range fields {
		merged[k] = v
	}
	if err != nil {
		merged["error"] = err.Error()
	}
	logJSON("error", msg, merged)
}

func logJSON(level, msg string, fields Fields) {
	entry := Fields{
		"level":     level,
		"message":   msg,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range fields {
		if _, reserved := entry[k]; reserved {
			continue
		}
		entry[k] = v
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		log.Printf("%s: %+v", msg, fields)
		return
	}
	log.Printf("%s", payload)
}
