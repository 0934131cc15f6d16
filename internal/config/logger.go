package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kitbuilder587/search-proxy/internal/domain"
)

const serviceName = "search-proxy"

// Имена полей, общие для access log и логов сервиса. Текст запроса в логи
// не пишем никогда, только хеш и длину.
const (
	FieldRequestID   = "request_id"
	FieldQueryHash   = "query_hash"
	FieldQueryLength = "query_length"
)

const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// NewLogger собирает zap логгер. Формат по умолчанию зависит от уровня:
// debug - цветная консоль, остальное - JSON для сборщика логов.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	level := parseLogLevel(cfg.Level)

	format, err := logFormat(cfg.Format, level)
	if err != nil {
		return nil, err
	}

	var config zap.Config
	if format == LogFormatConsole {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.EncodeDuration = zapcore.MillisDurationEncoder
		// access log на каждый запрос, с семплингом строки теряются под нагрузкой
		config.Sampling = nil
	}

	config.Level = zap.NewAtomicLevelAt(level)
	config.EncoderConfig.CallerKey = "caller"
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	config.InitialFields = map[string]interface{}{"service": serviceName}

	return config.Build(zap.AddStacktrace(zapcore.ErrorLevel))
}

// RequestIDField - id запроса из middleware, пустой id не пишем
func RequestIDField(id string) zap.Field {
	if id == "" {
		return zap.Skip()
	}
	return zap.String(FieldRequestID, id)
}

// QueryFields заменяет текст запроса хешем и длиной
func QueryFields(query string) []zap.Field {
	return []zap.Field{
		zap.String(FieldQueryHash, domain.QueryHash(query)),
		zap.Int(FieldQueryLength, len(query)),
	}
}

func logFormat(format string, level zapcore.Level) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "":
		if level == zapcore.DebugLevel {
			return LogFormatConsole, nil
		}
		return LogFormatJSON, nil
	case LogFormatJSON:
		return LogFormatJSON, nil
	case LogFormatConsole:
		return LogFormatConsole, nil
	}
	return "", fmt.Errorf("%w: LOG_FORMAT must be json or console, got %q", ErrInvalidConfig, format)
}

func parseLogLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
