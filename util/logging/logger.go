package logging

import "go.uber.org/zap"

// FormatProduction selects JSON output, any other format selects the
// human readable development output.
const FormatProduction = "production"

// NewLogger builds the root logger. Unknown levels fall back to info.
func NewLogger(name, level, format string) (*zap.Logger, error) {
	var config zap.Config
	if format == "" || format == FormatProduction {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	config.InitialFields = map[string]any{
		"app": name,
	}

	if atom, err := zap.ParseAtomicLevel(level); err == nil {
		config.Level = atom
	} else {
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return config.Build()
}
