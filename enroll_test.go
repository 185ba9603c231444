package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

func envValue(out, key string) string {
	for _, line := range strings.Split(out, "\n") {
		if v, ok := strings.CutPrefix(line, key+"="); ok {
			return strings.Trim(v, "'")
		}
	}
	return ""
}

func TestWriteEnrollment(t *testing.T) {
	var buf bytes.Buffer
	if err := writeEnrollment(&buf, "", "s3cret"); err != nil {
		t.Fatalf("writeEnrollment: %v", err)
	}
	out := buf.String()

	if got := envValue(out, "ADMIN_USERNAME"); got != defaultAdminUsername {
		t.Errorf("username = %q", got)
	}
	hash := envValue(out, "ADMIN_PASSWORD_HASH")
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")); err != nil {
		t.Errorf("hash does not match password: %v", err)
	}
	secret := envValue(out, "ADMIN_TOTP_SECRET")
	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	if !totp.Validate(code, secret) {
		t.Error("generated secret does not validate")
	}
	if !strings.Contains(out, "otpauth://totp/") {
		t.Error("missing otpauth url")
	}
}

func TestWriteEnrollmentNeedsPassword(t *testing.T) {
	if err := writeEnrollment(&bytes.Buffer{}, "admin", " "); err == nil {
		t.Fatal("accepted blank password")
	}
}
