package launcher

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-settlement/flags"
	"github.com/rony4d/go-settlement/logger"
	"github.com/rony4d/go-settlement/monitoring/prometheus"
)

var (
	// Git SHA1 commit hash of the release (set via linker flags).
	gitCommit = ""
)

func newApp() *cli.App {
	app := flags.NewApp(gitCommit, "the L1 settlement core of a STARK-proved rollup")
	app.Flags = flags.Merge(
		flags.CommonFlags(),
		flags.StorageFlags(),
		flags.ChainFlags(),
	)
	app.Commands = commands()
	app.Metadata = map[string]interface{}{}
	app.Before = before
	return app
}

func before(ctx *cli.Context) error {
	cfg, err := mayMakeAllConfigs(ctx)
	if err != nil {
		return err
	}
	ctx.App.Metadata[configKey] = cfg

	if err := logger.Setup(cfg.Node.Logging, os.Stderr); err != nil {
		return err
	}
	if cfg.Metrics.Enabled || cfg.Storage.EnableMetrics {
		// Providers look up their meters when the backend is built, after this.
		metrics.Enabled = true
		endpoint := net.JoinHostPort(cfg.Metrics.Addr, strconv.Itoa(cfg.Metrics.Port))
		prometheus.PrometheusListener(endpoint, nil)
	}
	log.Debug("Configuration loaded", "datadir", cfg.Node.DataDir, "network", cfg.Network.Name, "storage", cfg.Storage.Name)
	return nil
}

// Launch runs the settlement CLI.
func Launch(args []string) error {
	return newApp().Run(args)
}

// Main is the process entry point.
func Main() {
	if err := Launch(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
