package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ConfigureFromSettings builds a Logger from string-typed settings, the shape
// configuration files and environment variables naturally produce.
//
// level: "debug"|"info"|"warn"|"error". format: "text"|"json".
// output: "console"|"file"|"both" (file/both require filename).
func ConfigureFromSettings(level, format, output, filename string) (*Logger, error) {
	logLevel, err := ParseLogLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var logFormat LogFormat
	switch format {
	case "json":
		logFormat = JSONFormat
	case "text", "":
		logFormat = TextFormat
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}

	var writer io.Writer
	switch output {
	case "console", "":
		writer = os.Stdout
	case "file":
		if filename == "" {
			return nil, fmt.Errorf("log file path required when output is 'file'")
		}
		writer, err = CreateFileOutput(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to create file output: %w", err)
		}
	case "both":
		if filename == "" {
			return nil, fmt.Errorf("log file path required when output is 'both'")
		}
		fileWriter, err := CreateFileOutput(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to create file output: %w", err)
		}
		writer = io.MultiWriter(os.Stdout, fileWriter)
	default:
		return nil, fmt.Errorf("invalid log output: %s", output)
	}

	return NewLogger(&Config{Level: logLevel, Format: logFormat, Output: writer}), nil
}

// InitFromConfig parses level/format/output/filename and installs the result
// as the package-level global logger.
func InitFromConfig(level, format, output, filename string) error {
	logger, err := ConfigureFromSettings(level, format, output, filename)
	if err != nil {
		return err
	}
	InitGlobalLogger(&Config{
		Level:     logger.level,
		Format:    logger.format,
		Output:    logger.output,
		Component: logger.component,
	})
	return nil
}

// CreateFileOutput opens (creating parent directories as needed) filename for
// append-only writing, suitable as a Config.Output.
func CreateFileOutput(filename string) (io.Writer, error) {
	dir := filepath.Dir(filename)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}
