// ABOUTME: Log file setup
// ABOUTME: Routes the default logger to a file so the TUI owns the terminal
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"

	"github.com/Sendspin/varispeed-go/internal/config"
)

// logOutput is the open log file, also mirrored to stderr without the TUI
var logOutput io.Writer = io.Discard

func getLogFilePath(e config.Env) (string, error) {
	if e.LogFile != "" {
		return homedir.Expand(e.LogFile)
	}
	dir, err := gap.NewScope(gap.User, config.Name).CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, config.Name+".log"), nil
}

func setupLog(e config.Env) (func() error, error) {
	log.SetOutput(io.Discard)

	logFile, err := getLogFilePath(e)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		return nil, fmt.Errorf("unable to create log directory: %w", err)
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("unable to open log file: %w", err)
	}

	logOutput = f
	log.SetOutput(f)
	log.SetReportTimestamp(true)
	if e.Debug {
		log.SetLevel(log.DebugLevel)
	}
	return f.Close, nil
}
