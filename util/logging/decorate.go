package logging

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// DecorateLogger names the logger seen by the enclosing fx module and
// attaches fields to every entry it writes.
func DecorateLogger(name string, fields ...zap.Field) fx.Option {
	return fx.Decorate(func(log *zap.Logger) *zap.Logger {
		return log.Named(name).With(fields...)
	})
}
