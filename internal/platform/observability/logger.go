// Package observability builds the process logger and OpenTelemetry providers.
package observability

import (
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rl1809/storefront/internal/config"
)

// NewLogger returns a JSON logger on stdout. When withOTel is set, records
// are also sent through the global OpenTelemetry logger provider, so Setup
// must run first.
func NewLogger(level string, withOTel bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.Lock(os.Stdout),
		lvl,
	)
	if withOTel {
		core = zapcore.NewTee(core, otelzap.NewCore(config.ServiceName,
			otelzap.WithLoggerProvider(global.GetLoggerProvider()),
		))
	}

	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("service.name", config.ServiceName)),
	), nil
}
