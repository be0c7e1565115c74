package diag

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger 构造进程级诊断日志器：单行 JSON 写入 logs/ 目录，10 MiB 轮转。
// corrID 贯穿一次运行的全部事件；level 非法时回落 info。
func NewLogger(corrID, level string) zerolog.Logger {
	return NewLoggerTo(NewRotatingFile("logs", 10*1024*1024), corrID, level)
}

// NewLoggerTo 将日志写入指定 sink（测试时可注入缓冲区）。
func NewLoggerTo(w io.Writer, corrID, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(w).Level(parseLevel(level)).With().
		Timestamp().
		Str("corr_id", corrID).
		Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Component 派生带 comp 字段的子日志器，用于标识流水线组件。
func Component(l zerolog.Logger, comp string) zerolog.Logger {
	return l.With().Str("comp", comp).Logger()
}
