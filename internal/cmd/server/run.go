// Package server implements the server subcommand.
package server

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/Atharva0177/NAS/internal/auth"
	"github.com/Atharva0177/NAS/internal/config"
	"github.com/Atharva0177/NAS/internal/drives"
	"github.com/Atharva0177/NAS/internal/httpapi"
	"github.com/Atharva0177/NAS/internal/logging"
	"github.com/Atharva0177/NAS/internal/store"
	"github.com/Atharva0177/NAS/internal/thumbs"
	"github.com/Atharva0177/NAS/internal/version"
)

func Run(args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	var (
		configPath  string
		logLevel    string
		showVersion bool
	)
	fs.StringVar(&configPath, "config", "nas.yaml", "path to the YAML config file")
	fs.StringVar(&logLevel, "log-level", "", "override log level: debug|info|warning|error")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if showVersion {
		fmt.Printf("nas server %s\n", version.Version)
		return nil
	}

	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	// CLI overrides config.
	if strings.TrimSpace(logLevel) != "" {
		c.Log.Level = logLevel
	}
	lg, _, err := logging.New(logging.Options{Level: c.Log.Level, JSON: c.Log.JSON, DefaultSlog: true})
	if err != nil {
		return err
	}

	ctx := context.Background()
	st, err := store.Open(ctx, c.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.CountUsers(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no users exist; run `nas setup` first")
	}

	codec := auth.NewCodec([]byte(c.Auth.SessionSecret))

	srv := &httpapi.Server{
		Store:   st,
		Codec:   codec,
		Scanner: drives.NewScanner(),
		Thumbs:  thumbs.New(c.Thumbs.CacheDir, c.Thumbs.MaxDim, c.Thumbs.FFmpegPath),
		Cfg:     &c,
		Logger:  lg,
	}
	lg.Info("starting", "version", version.Version, "roots", c.Browse.AllowedRoots)
	return srv.ListenAndServe()
}
