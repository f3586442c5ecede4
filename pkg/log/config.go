package log

import (
	"fmt"
	"os"
	"strings"
)

// Config is the declarative logger configuration accepted by ApplyConfig.
type Config struct {
	Level  string `json:"level" mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"`
	// Output is one of console|stdout|null or a file path.
	Output string `json:"output" mapstructure:"output"`
	// RedactKeys lists field keys whose values are never printed.
	RedactKeys []string `json:"redactKeys" mapstructure:"redact_keys"`
	// SampleInitial/SampleThereafter enable per-message sampling when
	// SampleThereafter > 0.
	SampleInitial    int `json:"sampleInitial" mapstructure:"sample_initial"`
	SampleThereafter int `json:"sampleThereafter" mapstructure:"sample_thereafter"`
}

// ParseLevel converts a level name into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// ApplyConfig builds a Logger from cfg.
func ApplyConfig(cfg *Config) (Logger, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var formatter Formatter
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		formatter = &TextFormatter{}
	case "json":
		formatter = &JSONFormatter{}
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	var output Output
	switch cfg.Output {
	case "", "console":
		output = NewConsoleOutput()
	case "stdout":
		output = &ConsoleOutput{UseStdout: true}
	case "null":
		output = NullOutput{}
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log output: %w", err)
		}
		output = NewWriterOutput(f)
	}

	return NewLogger(
		WithLevel(level),
		WithFormatter(formatter),
		WithOutput(output),
		WithRedactedKeys(cfg.RedactKeys...),
		WithSampling(cfg.SampleInitial, cfg.SampleThereafter),
	), nil
}
