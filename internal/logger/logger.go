package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New dev 環境輸出 console 格式，其餘輸出 JSON
func New(level string, pretty bool, service string) zerolog.Logger {
	var w io.Writer = os.Stdout
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return newWithWriter(w, level, service)
}

// 等級由全域設定控制，設定檔重新載入時可直接調整
func newWithWriter(w io.Writer, level string, service string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	SetLevel(level)
	return zerolog.New(w).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}

// ParseLevel 無法辨識時回傳 info
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func SetLevel(level string) {
	zerolog.SetGlobalLevel(ParseLevel(level))
}
