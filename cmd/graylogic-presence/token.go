package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/api"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/config"
)

// defaultTokenTTL is the lifetime of a minted operator token.
const defaultTokenTTL = 24 * time.Hour

var errNoSecret = errors.New("security.jwt.secret is not configured")

// runToken mints an operator token signed with the configured JWT secret
// and writes it to out.
//
// Usage: graylogic-presence token -subject installer [-ttl 24h]
func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(out)
	subject := fs.String("subject", "", "token subject recorded in the audit trail")
	ttl := fs.Duration("ttl", defaultTokenTTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *subject == "" {
		return errors.New("token: -subject is required")
	}
	if *ttl <= 0 {
		return fmt.Errorf("token: -ttl must be positive, got %s", *ttl)
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Security.JWT.Secret == "" {
		return fmt.Errorf("token: %w", errNoSecret)
	}

	token, err := api.IssueToken(*subject, cfg.Security.JWT.Secret, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token) //nolint:errcheck // CLI output
	return nil
}
