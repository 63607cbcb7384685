// Package logging builds the slog loggers used by the example programs.
package logging

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

// New returns a logger writing human readable lines to w at the named level
// ("debug", "info", "warn", "error").
func New(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "log level %q", level)
	}
	handler := log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		Prefix:          "osc",
	})
	return slog.New(handler), nil
}
