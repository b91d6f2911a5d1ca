package logger

import (
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/log"
)

// Config is the [Node.Logging] section of the launcher config.
type Config struct {
	Verbosity int
	Format    string
	Color     bool
	SentryDSN string `toml:",omitempty"`
}

// Setup installs the root handler: records at or below Verbosity go to w in the
// chosen format, and error-level records are also forwarded to Sentry when a DSN is set.
func Setup(cfg Config, w io.Writer) error {
	var format log.Format
	switch strings.ToLower(cfg.Format) {
	case "", "text", "terminal":
		format = log.TerminalFormat(cfg.Color)
	case "json":
		format = log.JSONFormat()
	case "logfmt":
		format = log.LogfmtFormat()
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}
	handler := log.LvlFilterHandler(log.Lvl(cfg.Verbosity), log.StreamHandler(w, format))

	if cfg.SentryDSN != "" {
		sentry, err := SentryHandler(cfg.SentryDSN)
		if err != nil {
			return err
		}
		handler = log.MultiHandler(handler, sentry)
	}
	log.Root().SetHandler(handler)
	return nil
}
