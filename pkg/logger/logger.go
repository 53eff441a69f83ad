package logger

import (
	"fmt"
	"log/slog"
	"os"
)

// Logger — минимальный интерфейс логирования приложения.
// Errorf принимает исходную ошибку отдельным аргументом, чтобы она
// попадала в структурированный атрибут, а не растворялась в сообщении.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(err error, format string, args ...any)
}

type slogLogger struct {
	log *slog.Logger
}

// NewSlogLogger создает логгер поверх log/slog с текстовым выводом в stdout.
func NewSlogLogger() Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	return &slogLogger{
		log: slog.New(handler),
	}
}

// NewDiscardLogger возвращает логгер, отбрасывающий все сообщения. Для тестов.
func NewDiscardLogger() Logger {
	return &slogLogger{
		log: slog.New(slog.DiscardHandler),
	}
}

func (s *slogLogger) Infof(format string, args ...any) {
	s.log.Info(fmt.Sprintf(format, args...))
}

func (s *slogLogger) Warnf(format string, args ...any) {
	s.log.Warn(fmt.Sprintf(format, args...))
}

func (s *slogLogger) Errorf(err error, format string, args ...any) {
	s.log.Error(fmt.Sprintf(format, args...), slog.Any("error", err))
}
