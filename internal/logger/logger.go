package logger

import (
	"os"
	"sort"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	log   = zap.NewNop()
)

// Init installs the process-wide JSON logger on stdout.
func Init() {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = func(ts time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(ts.UTC().Format(time.RFC3339))
	}

	log = zap.New(zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(zapcore.AddSync(os.Stdout)),
		level,
	))
	log.Info("logger initialized")
}

// SetLevel changes the minimum level; unknown names keep the current one.
func SetLevel(name string) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		Warn("unknown log level", map[string]any{"level": name})
		return
	}
	level.SetLevel(l)
}

// Sync flushes buffered entries.
func Sync() {
	_ = log.Sync()
}

func Info(msg string, fields map[string]any) {
	log.Info(msg, toZap(fields)...)
}

func Warn(msg string, fields map[string]any) {
	log.Warn(msg, toZap(fields)...)
}

func Error(msg string, fields map[string]any) {
	log.Error(msg, toZap(fields)...)
}

func Fatal(msg string, fields map[string]any) {
	log.Fatal(msg, toZap(fields)...)
}

func toZap(fields map[string]any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		if err, ok := fields[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}
