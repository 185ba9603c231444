package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mdp/qrterminal/v3"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

const totpIssuer = "portfolio-admin"

// writeEnrollment prints environment lines for a hardened admin login: a
// bcrypt hash of password and a fresh TOTP secret with a scannable QR code.
func writeEnrollment(w io.Writer, username, password string) error {
	if username == "" {
		username = defaultAdminUsername
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is required (set ADMIN_PASSWORD)")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: username,
	})
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(w, "ADMIN_USERNAME=%s\n", username)
	_, _ = fmt.Fprintf(w, "ADMIN_PASSWORD_HASH='%s'\n", hash)
	_, _ = fmt.Fprintf(w, "ADMIN_TOTP_SECRET=%s\n", key.Secret())
	_, _ = fmt.Fprintf(w, "# otpauth_url: %s\n", key.URL())
	qrterminal.GenerateHalfBlock(key.URL(), qrterminal.L, w)
	return nil
}
