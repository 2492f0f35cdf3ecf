package logger

import (
	"os"
	"path/filepath"
	"strings"

	zaplogfmt "github.com/jsternberg/zap-logfmt"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger      *zap.Logger
	path        string
	atomicLevel = zap.NewAtomicLevel()
)

type lumberjackSink struct {
	*lumberjack.Logger
}

func (lumberjackSink) Sync() error {
	return nil
}

// Initialize installs the global logger: logfmt to stdout and to a rotating
// file named after svc under logging.path. An empty logging.path disables the
// file.
func Initialize(svc string) {
	path = os.TempDir()
	if viper.IsSet("logging.path") {
		path = viper.GetString("logging.path")
	}

	logger = zap.New(zapcore.NewCore(
		zaplogfmt.NewEncoder(ProdEncoderConf()),
		os.Stdout,
		atomicLevel,
	), zap.AddCaller())

	if path != "" {
		ljWriteSyncer := zapcore.AddSync(lumberjackSink{&lumberjack.Logger{
			Filename:   filepath.Join(path, svc+".log"),
			MaxSize:    64, // megabytes
			MaxBackups: 3,
			MaxAge:     30, // days
		}})

		ljCore := zapcore.NewCore(
			zaplogfmt.NewEncoder(ProdEncoderConf()),
			ljWriteSyncer,
			atomicLevel)

		logger = logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, ljCore)
		}))
	}

	zap.ReplaceGlobals(logger)
}

func Flush() {
	if logger != nil {
		_ = logger.Sync()
	}
}

// SetLevel changes the level of every core at once. Unknown names fall back
// to info.
func SetLevel(l string) {
	atomicLevel.SetLevel(parseLevel(l))
}

func GetLevel() string {
	return atomicLevel.Level().String()
}

// ValidLevel reports whether l names one of the supported levels.
func ValidLevel(l string) bool {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

func parseLevel(l string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func ProdEncoderConf() zapcore.EncoderConfig {
	encConf := zap.NewProductionEncoderConfig()
	encConf.EncodeTime = zapcore.RFC3339TimeEncoder

	return encConf
}
