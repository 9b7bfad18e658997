package logger

import (
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// New returns the process logger. JSON to stdout by default; a tinted
// console handler when MEDLEDGER_LOG=console makes local runs readable.
func New() *slog.Logger {
	if os.Getenv("MEDLEDGER_LOG") == "console" {
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
