package logger

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

var Logger *zerolog.Logger

// Init 初始化 zerolog 日志
// level: 日志级别 ("debug", "info", "warn", "error")
// file: 日志文件路径，为空时仅输出到 out
// out 是终端时使用控制台友好格式，否则输出 JSON 行。
func Init(level string, file string, out io.Writer) error {
	logLevel := ParseLevel(level)

	var console io.Writer = out
	if isTerminal(out) {
		console = zerolog.ConsoleWriter{Out: out, TimeFormat: "2006-01-02 15:04:05"}
	}

	output := console
	if file != "" {
		// 如果指定了文件，同时输出到文件和控制台，文件中始终为 JSON
		fileWriter, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		output = zerolog.MultiLevelWriter(console, fileWriter)
	}

	logger := zerolog.New(output).Level(logLevel).With().Timestamp().Logger()
	Logger = &logger
	return nil
}

// ParseLevel 解析日志级别，未知值按 info 处理
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get 返回全局 logger 实例
// 如果 logger 未初始化，返回一个默认的 logger（输出到 /dev/null）
func Get() *zerolog.Logger {
	if Logger == nil {
		logger := zerolog.New(io.Discard)
		Logger = &logger
	}
	return Logger
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
