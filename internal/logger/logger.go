// Package logger configures the composer's zerolog output and request logging.
package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

const Service = "composer"

// Build identifies the running binary.
type Build struct {
	GoVersion string
	Revision  string
	Modified  bool
}

// ReadBuild reports the toolchain and VCS revision stamped into the binary. Test
// binaries and builds without VCS data fall back to the runtime version and "unknown".
func ReadBuild() Build {
	b := Build{GoVersion: runtime.Version(), Revision: "unknown"}

	info, ok := debug.ReadBuildInfo()
	if !ok || info == nil {
		return b
	}
	if info.GoVersion != "" {
		b.GoVersion = info.GoVersion
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			b.Revision = s.Value
		case "vcs.modified":
			b.Modified = s.Value == "true"
		}
	}
	return b
}

// New returns the console logger for the composer and installs it as the context default.
func New(level string) zerolog.Logger {
	l := NewWithWriter(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}, level)
	zerolog.DefaultContextLogger = &l
	return l
}

func NewWithWriter(w io.Writer, level string) zerolog.Logger {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano

	logLevel, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		logLevel = zerolog.InfoLevel
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid log level '%s', defaulting to 'info'\n", level)
		}
	}

	build := ReadBuild()
	return zerolog.New(w).
		Level(logLevel).
		With().
		Timestamp().
		Caller().
		Str("service", Service).
		Int("pid", os.Getpid()).
		Str("go_version", build.GoVersion).
		Str("git_revision", build.Revision).
		Bool("dirty", build.Modified).
		Logger()
}
