// Package auth implements the interactive OAuth authorization-code flow
// used by the connect subcommand. Token refresh during sync is the
// orchestrator's job; this package only acquires the initial bundle.
package auth

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/oauth2"

	"github.com/decklabs/decksync/internal/model"
)

// Connect guides the user through the provider's authorization-code flow:
// it prints the consent URL to w, reads the resulting code from r, and
// exchanges it for a credential bundle. Offline access is requested so the
// engine can refresh tokens unattended later.
func Connect(ctx context.Context, cfg *oauth2.Config, r io.Reader, w io.Writer) (model.Credentials, error) {
	authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)

	fmt.Fprintln(w, "Visit the following URL to authorize decksync:")
	fmt.Fprintln(w, authURL)
	fmt.Fprint(w, "Enter the authorization code: ")

	var code string
	if _, err := fmt.Fscanln(r, &code); err != nil {
		return model.Credentials{}, fmt.Errorf("reading authorization code: %w", err)
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return model.Credentials{}, fmt.Errorf("exchanging authorization code: %w", err)
	}

	return model.Credentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}, nil
}
