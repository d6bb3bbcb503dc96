// Package logging constructs the loggers shared by the CLI and daemon.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger construction.
type Options struct {
	// Prefix is wrapped in brackets, e.g. "syncer" becomes "[syncer] ".
	Prefix string

	// Debug adds microsecond timestamps and caller locations.
	Debug bool

	// File, when set, mirrors output to a size-rotated log file in
	// addition to Stderr.
	File string

	// Stderr defaults to os.Stderr; tests substitute a buffer.
	Stderr io.Writer
}

// New builds a *log.Logger per the options.
func New(opts Options) *log.Logger {
	w := opts.Stderr
	if w == nil {
		w = os.Stderr
	}
	if opts.File != "" {
		w = io.MultiWriter(w, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	flags := log.LstdFlags
	if opts.Debug {
		flags |= log.Lmicroseconds | log.Lshortfile
	}

	prefix := ""
	if opts.Prefix != "" {
		prefix = "[" + opts.Prefix + "] "
	}
	return log.New(w, prefix, flags)
}
