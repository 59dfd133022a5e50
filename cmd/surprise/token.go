package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/nerrad567/surprise-core/internal/auth"
	"github.com/nerrad567/surprise-core/internal/infrastructure/config"
)

// runToken mints an action token for the client named in args[0] using the
// configured secret and writes it to out.
//
// Usage: surprise token <client>
func runToken(args []string, out io.Writer) error {
	if len(args) != 1 || args[0] == "" {
		return errors.New("usage: surprise token <client>")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Security.JWT.Secret == "" {
		return errors.New("security.jwt.secret is not set; tokens would not be checked")
	}

	token, err := auth.GenerateToken(args[0], cfg.Security.JWT.Secret, cfg.Security.JWT.TokenTTL)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
