// Package passwd implements the passwd subcommand: reset a user's
// password in the store, or just print a hash for manual use.
package passwd

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/Atharva0177/NAS/internal/auth"
	"github.com/Atharva0177/NAS/internal/store"
	"github.com/Atharva0177/NAS/internal/validate"
)

func Run(args []string) error {
	fs := flag.NewFlagSet("passwd", flag.ContinueOnError)
	var (
		storePath string
		username  string
		hashOnly  bool
	)
	fs.StringVar(&storePath, "store", "./data/nas.db", "sqlite store path")
	fs.StringVar(&username, "user", "", "username whose password to reset")
	fs.BoolVar(&hashOnly, "hash-only", false, "print the hash instead of writing the store")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !hashOnly && username == "" {
		return errors.New("-user is required (or use -hash-only)")
	}

	pass, err := readPassword()
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(pass, auth.DefaultArgon2Params())
	if err != nil {
		return err
	}
	if hashOnly {
		fmt.Println(hash)
		return nil
	}

	ctx := context.Background()
	st, err := store.Open(ctx, storePath)
	if err != nil {
		return err
	}
	defer st.Close()

	u, ok, err := st.GetUserByUsername(ctx, username)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no such user: %s", username)
	}
	if err := st.SetUserPasswordHash(ctx, u.ID, hash); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "password updated for %q\n", username)
	return nil
}

func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "New password: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		p := strings.TrimSpace(string(b))
		if err := validate.Password(p); err != nil {
			return "", err
		}
		return p, nil
	}
	r := bufio.NewReader(os.Stdin)
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
