package logger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/datazip-inc/lakeplan/constants"
)

var logger zerolog.Logger

func init() {
	// usable before Init for early failures; Init attaches the rotating file
	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger = zerolog.New(console).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}

// Init wires the package logger to stdout plus a rotating file under
// CONFIG_FOLDER/logs. Call once from the root command after viper is set up.
func Init() {
	logDir := filepath.Join(viper.GetString(constants.ConfigFolder), "logs")
	if err := os.MkdirAll(logDir, os.ModePerm); err != nil {
		Warnf("failed to create log directory %s: %s", logDir, err)
		return
	}

	fileWriter := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "lakeplan.log"),
		MaxSize:    100, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	multi := zerolog.MultiLevelWriter(console, fileWriter)
	logger = zerolog.New(multi).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}

func Debug(v ...any) {
	logEvent(logger.Debug(), v...)
}

func Debugf(format string, v ...any) {
	logger.Debug().Msgf(format, v...)
}

func Info(v ...any) {
	logEvent(logger.Info(), v...)
}

func Infof(format string, v ...any) {
	logger.Info().Msgf(format, v...)
}

func Warn(v ...any) {
	logEvent(logger.Warn(), v...)
}

func Warnf(format string, v ...any) {
	logger.Warn().Msgf(format, v...)
}

func Error(v ...any) {
	logEvent(logger.Error(), v...)
}

func Errorf(format string, v ...any) {
	logger.Error().Msgf(format, v...)
}

func Fatal(v ...any) {
	logEvent(logger.Fatal(), v...)
}

func Fatalf(format string, v ...any) {
	logger.Fatal().Msgf(format, v...)
}

// logEvent renders structured values as JSON so maps and structs stay
// machine-readable on the console (the spec and plan commands rely on it).
func logEvent(event *zerolog.Event, v ...any) {
	if len(v) == 1 {
		switch value := v[0].(type) {
		case string:
			event.Msg(value)
		case error:
			event.Msg(value.Error())
		default:
			encoded, err := json.Marshal(value)
			if err != nil {
				event.Msg(fmt.Sprint(value))
				return
			}
			event.Msg(string(encoded))
		}
		return
	}
	event.Msg(fmt.Sprint(v...))
}

// StatsLogger reports writer progress every five seconds until ctx is done.
// The callback returns running totals: worker threads, records accepted from
// the producer, records handed to the writer.
func StatsLogger(ctx context.Context, stats func() (int64, int64, int64)) {
	go func() {
		start := time.Now()
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				threads, accepted, written := stats()
				elapsed := time.Since(start).Seconds()
				speed := float64(written) / elapsed
				Infof("Memory Stats: %s | Threads: %d | Accepted: %d | Written: %d | Speed: %.2f rps",
					memoryStats(), threads, accepted, written, speed)
			}
		}
	}()
}

func memoryStats() string {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return fmt.Sprintf("%d mb", stats.HeapInuse/(1024*1024))
}

// FileLoggerWithPath writes content as JSON to the given path, creating
// parent directories as needed.
func FileLoggerWithPath(content any, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directory for %s: %s", path, err)
	}

	encoded, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal content for %s: %s", path, err)
	}

	if err := os.WriteFile(path, encoded, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %s", path, err)
	}
	return nil
}
