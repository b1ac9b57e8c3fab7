// Command checkconfig loads a configuration directory and builds the provider
// registry and fallback graph exactly as the predictor would, without serving.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/af-corp/prediction-orchestrator/internal/config"
	"github.com/af-corp/prediction-orchestrator/internal/router"
)

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	flag.Parse()

	if err := run(os.Stdout, *configDir); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(w io.Writer, configDir string) error {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	loader := config.NewLoader(configDir, logger)
	if err := loader.Load(); err != nil {
		return err
	}

	reg, res, err := router.Build(loader.Providers(), loader.Models(), router.BuildOptions{
		Orchestration: loader.Config().Orchestration,
	})
	if err != nil {
		return err
	}

	active := map[string]bool{}
	for _, p := range reg.Active() {
		active[p.ID()] = true
	}
	fallbacks := res.Mappings()

	fmt.Fprintf(w, "%-32s %-12s %-9s %-8s %s\n", "MODEL", "BACKEND", "ACTIVE", "KEY", "FALLBACK")
	for _, id := range reg.IDs() {
		p, _ := reg.Get(id)
		key := "missing"
		if reg.HasCredential(p) {
			key = "ok"
		}
		fb := fallbacks[id]
		if fb == "" {
			fb = "-"
		}
		fmt.Fprintf(w, "%-32s %-12s %-9v %-8s %s\n", id, p.Backend(), active[id], key, fb)
	}
	fmt.Fprintf(w, "\nconfiguration OK: %d models, %d fallbacks\n", len(reg.IDs()), len(fallbacks))
	return nil
}
