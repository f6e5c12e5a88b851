package logger

import (
	"sync/atomic"
	"time"

	"github.com/leandrodaf/midi-archiver/sdk/contracts"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// callerSkip hides the wrapper frames (public method + log) from zap's caller annotation.
const callerSkip = 2

// ZapLogger implements contracts.Logger on top of Uber's zap.
//
// Loggers derived with With share the level and destination of their parent.
type ZapLogger struct {
	logger *atomic.Pointer[zap.Logger]
	level  zap.AtomicLevel
	fields []zap.Field
}

// NewZapLogger creates a production zap logger writing JSON to stderr.
func NewZapLogger() contracts.Logger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	z := &ZapLogger{logger: new(atomic.Pointer[zap.Logger]), level: level}
	logger, err := build(level, "stderr")
	if err != nil {
		logger = zap.NewNop()
	}
	z.logger.Store(logger)
	return z
}

// NewZapLoggerWithCore wraps an existing core. Level filtering still honours SetLevel.
func NewZapLoggerWithCore(core zapcore.Core) *ZapLogger {
	z := &ZapLogger{logger: new(atomic.Pointer[zap.Logger]), level: zap.NewAtomicLevelAt(zapcore.InfoLevel)}
	z.logger.Store(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(callerSkip)))
	return z
}

func build(level zap.AtomicLevel, outputs ...string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.OutputPaths = outputs
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	return cfg.Build(zap.AddCallerSkip(callerSkip))
}

// Info logs a message at the INFO level
func (z *ZapLogger) Info(msg string, fields ...contracts.Field) {
	z.log(zapcore.InfoLevel, msg, fields...)
}

// Error logs a message at the ERROR level
func (z *ZapLogger) Error(msg string, fields ...contracts.Field) {
	z.log(zapcore.ErrorLevel, msg, fields...)
}

// Debug logs a message at the DEBUG level
func (z *ZapLogger) Debug(msg string, fields ...contracts.Field) {
	z.log(zapcore.DebugLevel, msg, fields...)
}

// Warn logs a message at the WARN level
func (z *ZapLogger) Warn(msg string, fields ...contracts.Field) {
	z.log(zapcore.WarnLevel, msg, fields...)
}

// Fatal logs a message at the FATAL level and terminates the application
func (z *ZapLogger) Fatal(msg string, fields ...contracts.Field) {
	z.log(zapcore.FatalLevel, msg, fields...)
}

// Field returns a new instance of Field
func (z *ZapLogger) Field() contracts.Field {
	return &zapField{}
}

// With returns a child logger that adds fields to every entry.
func (z *ZapLogger) With(fields ...contracts.Field) contracts.Logger {
	child := &ZapLogger{logger: z.logger, level: z.level}
	child.fields = append(append([]zap.Field(nil), z.fields...), toZapFields(fields)...)
	return child
}

// SetLevel sets the logging level
func (z *ZapLogger) SetLevel(level contracts.LogLevel) {
	z.level.SetLevel(toZapLevel(level))
}

// SetDestination switches output between the console and a file. If the file
// cannot be opened the current destination is kept and a warning is logged.
func (z *ZapLogger) SetDestination(dest contracts.LogDestination, filePath ...string) {
	output := "stderr"
	if dest == contracts.FileLog {
		if len(filePath) == 0 || filePath[0] == "" {
			z.Warn("file log destination requested without a path")
			return
		}
		output = filePath[0]
	}

	logger, err := build(z.level, output)
	if err != nil {
		z.Warn("failed to switch log destination",
			z.Field().String("destination", output),
			z.Field().Error("error", err))
		return
	}
	if old := z.logger.Swap(logger); old != nil {
		_ = old.Sync()
	}
}

// Sync flushes buffered log entries.
func (z *ZapLogger) Sync() error {
	return z.logger.Load().Sync()
}

func (z *ZapLogger) log(level zapcore.Level, msg string, fields ...contracts.Field) {
	if !z.level.Enabled(level) {
		return
	}
	logger := z.logger.Load()
	if ce := logger.Check(level, msg); ce != nil {
		if len(z.fields) == 0 {
			ce.Write(toZapFields(fields)...)
			return
		}
		ce.Write(append(append([]zap.Field(nil), z.fields...), toZapFields(fields)...)...)
	}
}

func toZapLevel(level contracts.LogLevel) zapcore.Level {
	switch level {
	case contracts.DebugLevel:
		return zapcore.DebugLevel
	case contracts.WarnLevel:
		return zapcore.WarnLevel
	case contracts.ErrorLevel:
		return zapcore.ErrorLevel
	case contracts.FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel maps a level name from configuration to a contracts.LogLevel.
func ParseLevel(name string) (contracts.LogLevel, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return contracts.InfoLevel, err
	}
	switch level {
	case zapcore.DebugLevel:
		return contracts.DebugLevel, nil
	case zapcore.WarnLevel:
		return contracts.WarnLevel, nil
	case zapcore.ErrorLevel:
		return contracts.ErrorLevel, nil
	case zapcore.FatalLevel:
		return contracts.FatalLevel, nil
	default:
		return contracts.InfoLevel, nil
	}
}

func toZapFields(fields []contracts.Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		if f, ok := field.(*zapField); ok && f.field.Key != "" {
			out = append(out, f.field)
		}
	}
	return out
}

// zapField implements contracts.Field
type zapField struct {
	field zap.Field
}

func (f *zapField) Bool(key string, val bool) contracts.Field {
	return &zapField{zap.Bool(key, val)}
}

func (f *zapField) Int(key string, val int) contracts.Field {
	return &zapField{zap.Int(key, val)}
}

func (f *zapField) Float64(key string, val float64) contracts.Field {
	return &zapField{zap.Float64(key, val)}
}

func (f *zapField) String(key string, val string) contracts.Field {
	return &zapField{zap.String(key, val)}
}

func (f *zapField) Time(key string, val time.Time) contracts.Field {
	return &zapField{zap.Time(key, val)}
}

func (f *zapField) Int64(key string, val int64) contracts.Field {
	return &zapField{zap.Int64(key, val)}
}

func (f *zapField) Error(key string, val error) contracts.Field {
	return &zapField{zap.NamedError(key, val)}
}

func (f *zapField) Uint64(key string, val uint64) contracts.Field {
	return &zapField{zap.Uint64(key, val)}
}

func (f *zapField) Uint8(key string, val uint8) contracts.Field {
	return &zapField{zap.Uint8(key, val)}
}

func (f *zapField) Duration(key string, val time.Duration) contracts.Field {
	return &zapField{zap.Duration(key, val)}
}

// NewNop returns a logger that discards everything.
func NewNop() contracts.Logger {
	return NewZapLoggerWithCore(zapcore.NewNopCore())
}
