package vaultfs

import (
	"io"

	"github.com/charmbracelet/log"
)

// NewLogger returns a logger writing to w with the vaultfs prefix
func NewLogger(w io.Writer, level log.Level) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		Prefix:          "vaultfs",
		ReportTimestamp: true,
	})
	l.SetLevel(level)
	return l
}

// discardLogger is used when Config.Logger is nil
func discardLogger() *log.Logger {
	return log.New(io.Discard)
}
