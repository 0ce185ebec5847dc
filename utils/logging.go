package utils

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func init() {
	SetLoggerConsole(false)
}

var NoColour bool

const (
	colourBlack = iota + 30
	colourRed
	colourGreen
	colourYellow
	colourBlue
	colourMagenta
	colourCyan
	colourWhite

	colourBold = 1
)

// Helper for escape analysis; avoids go thinking the variadic argument escapes.
// Default "verb" behaviour.
func V[T any](copyThatEscapes T) string {
	return fmt.Sprintf("%v", copyThatEscapes)
}

// Helper for escape analysis; avoids go thinking the variadic argument escapes.
// Uses the given format string.
func F[T any](f string, copyThatEscapes T) string {
	return fmt.Sprintf(f, copyThatEscapes)
}

func colourize(s interface{}, c int) string {
	if NoColour {
		return fmt.Sprintf("%s", s)
	}
	return fmt.Sprintf("\x1b[%dm%v\x1b[0m", c, s)
}

// 0: info, 1: debug, 2 and above: trace.
func SetLevel(level int) {
	switch level {
	case 0:
		log.Logger = log.With().Logger().Level(zerolog.InfoLevel)
	case 1:
		log.Logger = log.With().Logger().Level(zerolog.DebugLevel)
	default:
		log.Logger = log.With().Logger().Level(zerolog.TraceLevel)
	}
}

func SetLoggerConsole(noColour bool) {
	NoColour = noColour
	zerolog.CallerMarshalFunc = shortCallerMarshal

	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05.000", NoColor: noColour}
	cw.FormatLevel = consoleFormatLevel
	cw.PartsOrder = []string{
		zerolog.TimestampFieldName,
		zerolog.CallerFieldName,
		zerolog.LevelFieldName,
		zerolog.MessageFieldName,
	}
	log.Logger = log.With().Caller().Logger().Output(cw)
}

func shortCallerMarshal(pc uintptr, file string, line int) string {
	short := file
	for i := len(file) - 1; i > 0; i-- {
		if file[i] == '/' {
			short = file[i+1:]
			break
		}
	}
	file = fmt.Sprintf("%15s.%-4s", short, strconv.Itoa(line))
	if len(file) > 20 {
		file = ".." + file[len(file)-18:]
	}
	return colourize(file, colourBlack)
}

func consoleFormatLevel(i any) string {
	var l string
	if ll, ok := i.(string); ok {
		switch ll {
		case zerolog.LevelTraceValue:
			l = colourize("| TRACE |", colourMagenta)
		case zerolog.LevelDebugValue:
			l = colourize("| DEBUG |", colourYellow)
		case zerolog.LevelInfoValue:
			l = colourize("| INFO  |", colourGreen)
		case zerolog.LevelWarnValue:
			l = colourize("| WARN  |", colourRed)
		case zerolog.LevelErrorValue:
			l = colourize(colourize("| ERROR |", colourRed), colourBold)
		case zerolog.LevelFatalValue:
			l = colourize(colourize("| FATAL |", colourRed), colourBold)
		case zerolog.LevelPanicValue:
			l = colourize(colourize("| PANIC |", colourRed), colourBold)
		default:
			l = colourize(ll, colourBold)
		}
	} else {
		if i == nil {
			l = colourize("| ??? |", colourBold)
		} else {
			l = strings.ToUpper(fmt.Sprintf("| %5s |", i))
		}
	}
	return l
}

func MemoryStats() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	log.Debug().Msg("(MiB): Alloc: " + V(m.Alloc/1024/1024) + " Sys: " + V(m.Sys/1024/1024) +
		" TotalAlloc: " + V(m.TotalAlloc/1024/1024) +
		" HeapInuse: " + V(m.HeapInuse/1024/1024) +
		". (#): NumGC: " + V(m.NumGC))
}
