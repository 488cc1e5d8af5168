package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ============================================================
// Application Logger
// ============================================================

type Builder struct {
	writer  io.Writer
	level   zerolog.Level
	console bool
}

func New() *Builder {
	return &Builder{writer: os.Stdout, level: zerolog.InfoLevel}
}

func (b *Builder) FromWriter(w io.Writer) *Builder {
	b.writer = w
	return b
}

// Level задаёт уровень по имени ("debug", "warn", ...). Неизвестное имя даёт info.
func (b *Builder) Level(name string) *Builder {
	lvl, err := zerolog.ParseLevel(name)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	b.level = lvl
	return b
}

// Console включает человекочитаемый вывод вместо JSON.
func (b *Builder) Console(on bool) *Builder {
	b.console = on
	return b
}

func (b *Builder) Make() zerolog.Logger {
	w := b.writer
	if b.console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: true}
	}
	return zerolog.New(w).Level(b.level).With().Timestamp().Logger()
}

// Component возвращает логгер с полем component.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
