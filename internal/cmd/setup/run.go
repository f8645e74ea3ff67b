// Package setup implements the setup subcommand. It creates the
// SQLite store and seeds the first admin account.
package setup

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/Atharva0177/NAS/internal/auth"
	"github.com/Atharva0177/NAS/internal/store"
	"github.com/Atharva0177/NAS/internal/validate"
)

func Run(args []string) error {
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	var (
		storePath string
		username  string
	)
	fs.StringVar(&storePath, "store", "./data/nas.db", "sqlite store path")
	fs.StringVar(&username, "admin", "admin", "initial admin username")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := validate.Username(username); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(storePath), 0o700); err != nil {
		return err
	}

	ctx := context.Background()
	st, err := store.Open(ctx, storePath)
	if err != nil {
		return err
	}
	defer st.Close()
	_ = os.Chmod(storePath, 0o600)

	n, err := st.CountUsers(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return errors.New("already initialized")
	}

	pass, err := promptPassword("Set initial admin password")
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(pass, auth.DefaultArgon2Params())
	if err != nil {
		return err
	}
	created, err := st.SeedAdminIfEmpty(ctx, username, hash)
	if err != nil {
		return err
	}
	if !created {
		return errors.New("already initialized")
	}

	fmt.Fprintf(os.Stderr, "created admin user %q in %s\n", username, storePath)
	return nil
}

func promptPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		for {
			fmt.Fprintf(os.Stderr, "%s: ", label)
			p1b, err := term.ReadPassword(fd)
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return "", err
			}
			fmt.Fprint(os.Stderr, "Confirm password: ")
			p2b, err := term.ReadPassword(fd)
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return "", err
			}
			p1 := strings.TrimSpace(string(p1b))
			p2 := strings.TrimSpace(string(p2b))
			if err := validate.Password(p1); err != nil {
				fmt.Fprintln(os.Stderr, err.Error())
				continue
			}
			if p1 != p2 {
				fmt.Fprintln(os.Stderr, "passwords do not match")
				continue
			}
			return p1, nil
		}
	}

	// Non-interactive fallback (e.g. piped input).
	r := bufio.NewReader(os.Stdin)
	fmt.Fprintf(os.Stderr, "%s: ", label)
	p, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	p = strings.TrimSpace(p)
	if err := validate.Password(p); err != nil {
		return "", err
	}
	return p, nil
}
