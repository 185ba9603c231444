package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
	"pkt.systems/pslog"

	"github.com/adwet007/portfolio/internal/content"
	"github.com/adwet007/portfolio/internal/store"
	"github.com/adwet007/portfolio/internal/typing"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig(t *testing.T) appConfig {
	t.Helper()
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	cfg.SMTPUser, cfg.SMTPPass = "", ""
	cfg.AdminUsername, cfg.AdminPassword = "admin", "admin123"
	cfg.AdminPasswordHash, cfg.AdminTOTPSecret = "", ""
	cfg.TypingStartDelay = 0
	cfg.TypingTypeDelay = time.Millisecond
	cfg.TypingDeleteDelay = time.Millisecond
	cfg.TypingEndPause = time.Millisecond
	cfg.TypingNextPause = time.Millisecond
	return cfg
}

func newTestServer(t *testing.T, cfg appConfig) (*server, *gin.Engine) {
	t.Helper()
	site, err := content.Default()
	if err != nil {
		t.Fatalf("content.Default: %v", err)
	}
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	logger := pslog.NewWithOptions(io.Discard, pslog.Options{
		Mode:     pslog.ModeStructured,
		NoColor:  true,
		MinLevel: pslog.ErrorLevel,
	})
	srv, err := newServer(cfg, site, st, logger)
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	t.Cleanup(func() {
		srv.wait()
		st.Close()
	})
	return srv, srv.routes()
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestIndex(t *testing.T) {
	_, r := newTestServer(t, testConfig(t))
	w := do(r, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET / = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"Adwet Naithani", `href="#projects"`, `data-color-scheme="dark"`} {
		if !strings.Contains(body, want) {
			t.Errorf("index missing %q", want)
		}
	}
}

func TestHealth(t *testing.T) {
	_, r := newTestServer(t, testConfig(t))
	w := do(r, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("healthz = %d %s", w.Code, w.Body.String())
	}
}

func activeSection(t *testing.T, r http.Handler, body string) (int, map[string]string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/active-section", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := do(r, req)
	var out map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return w.Code, out
}

func TestActiveSection(t *testing.T) {
	_, r := newTestServer(t, testConfig(t))
	layout := `[{"id":"home","top":0,"height":500},{"id":"about","top":500,"height":400}]`

	tests := []struct {
		name string
		body string
		want string
	}{
		{"top", `{"scroll_y":0,"sections":` + layout + `}`, "home"},
		{"about", `{"scroll_y":450,"sections":` + layout + `}`, "about"},
		{"keeps previous", `{"scroll_y":5000,"previous":"about","sections":` + layout + `}`, "about"},
		{"no previous", `{"scroll_y":5000,"sections":` + layout + `}`, ""},
		{"custom bias", `{"scroll_y":450,"top_bias":0,"sections":` + layout + `}`, "home"},
	}
	for _, tt := range tests {
		code, out := activeSection(t, r, tt.body)
		if code != http.StatusOK {
			t.Errorf("%s: status = %d", tt.name, code)
			continue
		}
		if out["active"] != tt.want {
			t.Errorf("%s: active = %q, want %q", tt.name, out["active"], tt.want)
		}
	}
}

func TestActiveSectionRejectsBadInput(t *testing.T) {
	_, r := newTestServer(t, testConfig(t))

	code, out := activeSection(t, r, `{"scroll_y":1,"sections":[{"id":"a","height":1},{"id":"a","height":2}]}`)
	if code != http.StatusBadRequest || !strings.Contains(out["error"], "duplicate") {
		t.Errorf("duplicate ids = %d %v", code, out)
	}
	code, _ = activeSection(t, r, `{"scroll_y":1,"sections":[{"id":"a","height":-5}]}`)
	if code != http.StatusBadRequest {
		t.Errorf("negative height = %d", code)
	}
	code, _ = activeSection(t, r, `{"sections":[]}`)
	if code != http.StatusBadRequest {
		t.Errorf("missing scroll_y = %d", code)
	}
}

func TestProject(t *testing.T) {
	_, r := newTestServer(t, testConfig(t))
	w := do(r, httptest.NewRequest(http.MethodGet, "/projects/payment-gateway", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Unity Catalog") {
		t.Fatalf("project = %d %s", w.Code, w.Body.String())
	}
	w = do(r, httptest.NewRequest(http.MethodGet, "/projects/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown project = %d", w.Code)
	}
}

func TestTheme(t *testing.T) {
	_, r := newTestServer(t, testConfig(t))
	w := do(r, httptest.NewRequest(http.MethodPost, "/theme", nil))
	if !strings.Contains(w.Body.String(), `"light"`) {
		t.Fatalf("first toggle = %s", w.Body.String())
	}
	req := httptest.NewRequest(http.MethodPost, "/theme", nil)
	req.AddCookie(&http.Cookie{Name: themeCookie, Value: "light"})
	w = do(r, req)
	if !strings.Contains(w.Body.String(), `"dark"`) {
		t.Fatalf("second toggle = %s", w.Body.String())
	}
}

func TestTypingStream(t *testing.T) {
	_, r := newTestServer(t, testConfig(t))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/typing/stream", nil).WithContext(ctx)
	w := do(r, req)

	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "event:typing\ndata:D\n") {
		t.Fatalf("stream missing first frame:\n%s", body)
	}
}

func TestNewServerRejectsNoPhrases(t *testing.T) {
	site, _ := content.Default()
	site.Phrases = nil
	st, err := store.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	_, err = newServer(testConfig(t), site, st, pslog.NewWithOptions(io.Discard, pslog.Options{}))
	if err == nil {
		t.Fatal("newServer accepted empty phrases")
	}
	if !errors.Is(err, typing.ErrInvalidConfig) {
		t.Fatalf("err = %v", err)
	}
}

func TestVisitorTracking(t *testing.T) {
	srv, r := newTestServer(t, testConfig(t))

	do(r, httptest.NewRequest(http.MethodGet, "/", nil))
	dnt := httptest.NewRequest(http.MethodGet, "/", nil)
	dnt.Header.Set("DNT", "1")
	do(r, dnt)
	do(r, httptest.NewRequest(http.MethodGet, "/privacy", nil))
	srv.wait()

	visitors, err := srv.store.RecentVisitors(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentVisitors: %v", err)
	}
	if len(visitors) != 1 {
		t.Fatalf("visitors = %d, want 1", len(visitors))
	}
	if v := visitors[0]; len(v.HashedIP) != 16 || strings.Contains(v.HashedIP, "192.0.2.1") {
		t.Fatalf("stored ip %q is not a truncated hash", v.HashedIP)
	}
}

func TestContactValidation(t *testing.T) {
	srv, r := newTestServer(t, testConfig(t))
	w := do(r, postForm("/contact", url.Values{
		"name": {"  "}, "email": {"not-an-email"}, "subject": {"Hi"}, "message": {"Hello"},
	}))
	body := w.Body.String()
	if !strings.Contains(body, "Name is required") || !strings.Contains(body, "Please enter a valid email") {
		t.Fatalf("validation body = %s", body)
	}
	msgs, _ := srv.store.RecentMessages(context.Background(), 10)
	if len(msgs) != 0 {
		t.Fatalf("invalid submission stored: %+v", msgs)
	}
}

func TestContactStoresWithoutSMTP(t *testing.T) {
	srv, r := newTestServer(t, testConfig(t))
	w := do(r, postForm("/contact", url.Values{
		"name": {" Ada "}, "email": {"ada@example.com"}, "subject": {"Hi"}, "message": {"Hello"},
	}))
	if !strings.Contains(w.Body.String(), "Message sent successfully") {
		t.Fatalf("body = %s", w.Body.String())
	}
	msgs, err := srv.store.RecentMessages(context.Background(), 10)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("messages = %+v, %v", msgs, err)
	}
	if msgs[0].Name != "Ada" || msgs[0].Delivered {
		t.Fatalf("message = %+v", msgs[0])
	}
}

func TestContactDeliversWithSMTP(t *testing.T) {
	srv, r := newTestServer(t, testConfig(t))
	srv.mailer.User, srv.mailer.Pass = "me@example.com", "secret"
	sent := 0
	srv.mailer.Send = func(string, smtp.Auth, string, []string, []byte) error {
		sent++
		return nil
	}
	do(r, postForm("/contact", url.Values{
		"name": {"Ada"}, "email": {"ada@example.com"}, "subject": {"Hi"}, "message": {"Hello"},
	}))
	msgs, _ := srv.store.RecentMessages(context.Background(), 10)
	if sent != 1 || len(msgs) != 1 || !msgs[0].Delivered {
		t.Fatalf("sent=%d messages=%+v", sent, msgs)
	}
}

func TestResumeFallsBackToText(t *testing.T) {
	_, r := newTestServer(t, testConfig(t))
	w := do(r, httptest.NewRequest(http.MethodGet, "/resume", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("resume = %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "Adwet_Naithani_Resume.txt") {
		t.Fatalf("content disposition = %q", cd)
	}
	if !strings.HasPrefix(w.Body.String(), "ADWET NAITHANI") {
		t.Fatalf("body = %q", w.Body.String())
	}
}

func login(t *testing.T, r http.Handler, form url.Values) *http.Cookie {
	t.Helper()
	w := do(r, postForm("/admin/login", form))
	if w.Code != http.StatusFound {
		t.Fatalf("login = %d %s", w.Code, w.Body.String())
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == adminCookie && c.Value != "" {
			return c
		}
	}
	t.Fatal("login set no admin cookie")
	return nil
}

func TestAdminRequiresLogin(t *testing.T) {
	_, r := newTestServer(t, testConfig(t))
	w := do(r, httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil))
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/admin/login" {
		t.Fatalf("dashboard without cookie = %d %q", w.Code, w.Header().Get("Location"))
	}
	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: adminCookie, Value: "forged"})
	if w := do(r, req); w.Code != http.StatusFound {
		t.Fatalf("dashboard with forged cookie = %d", w.Code)
	}
	w = do(r, postForm("/admin/login", url.Values{"username": {"admin"}, "password": {"wrong"}}))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login = %d", w.Code)
	}
}

func TestAdminResumeLink(t *testing.T) {
	_, r := newTestServer(t, testConfig(t))
	cookie := login(t, r, url.Values{"username": {"admin"}, "password": {"admin123"}})

	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	req.AddCookie(cookie)
	if w := do(r, req); w.Code != http.StatusOK {
		t.Fatalf("dashboard = %d", w.Code)
	}

	for _, bad := range []string{"not a url", "ftp://example.com/cv.pdf"} {
		req = postForm("/admin/resume", url.Values{"resume_url": {bad}})
		req.AddCookie(cookie)
		if w := do(r, req); w.Code != http.StatusBadRequest {
			t.Errorf("resume_url %q = %d, want 400", bad, w.Code)
		}
	}

	req = postForm("/admin/resume", url.Values{"resume_url": {"https://example.com/cv.pdf"}})
	req.AddCookie(cookie)
	if w := do(r, req); w.Code != http.StatusSeeOther {
		t.Fatalf("set resume = %d %s", w.Code, w.Body.String())
	}

	w := do(r, httptest.NewRequest(http.MethodGet, "/resume", nil))
	if w.Code != http.StatusFound || w.Header().Get("Location") != "https://example.com/cv.pdf" {
		t.Fatalf("resume = %d %q", w.Code, w.Header().Get("Location"))
	}

	req = httptest.NewRequest(http.MethodDelete, "/admin/resume", nil)
	req.AddCookie(cookie)
	if w := do(r, req); w.Code != http.StatusOK {
		t.Fatalf("clear resume = %d", w.Code)
	}
	if w := do(r, httptest.NewRequest(http.MethodGet, "/resume", nil)); w.Code != http.StatusOK {
		t.Fatalf("resume after clear = %d", w.Code)
	}
}

func TestAdminLogoutEndsSession(t *testing.T) {
	_, r := newTestServer(t, testConfig(t))
	cookie := login(t, r, url.Values{"username": {"admin"}, "password": {"admin123"}})

	req := httptest.NewRequest(http.MethodGet, "/admin/logout", nil)
	req.AddCookie(cookie)
	do(r, req)

	req = httptest.NewRequest(http.MethodGet, "/admin/messages", nil)
	req.AddCookie(cookie)
	if w := do(r, req); w.Code != http.StatusFound {
		t.Fatalf("messages after logout = %d", w.Code)
	}
}

func TestAdminSessionExpires(t *testing.T) {
	srv, r := newTestServer(t, testConfig(t))
	cookie := login(t, r, url.Values{"username": {"admin"}, "password": {"admin123"}})
	srv.admin.now = func() time.Time { return time.Now().Add(48 * time.Hour) }

	req := httptest.NewRequest(http.MethodGet, "/admin/visitors", nil)
	req.AddCookie(cookie)
	if w := do(r, req); w.Code != http.StatusFound {
		t.Fatalf("visitors with expired session = %d", w.Code)
	}
}

func TestAdminBcryptAndTOTP(t *testing.T) {
	const secret = "JBSWY3DPEHPK3PXP"
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	cfg := testConfig(t)
	cfg.AdminPassword = ""
	cfg.AdminPasswordHash = string(hash)
	cfg.AdminTOTPSecret = secret
	_, r := newTestServer(t, cfg)

	w := do(r, postForm("/admin/login", url.Values{"username": {"admin"}, "password": {"s3cret"}}))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("login without totp = %d", w.Code)
	}
	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	cookie := login(t, r, url.Values{"username": {"admin"}, "password": {"s3cret"}, "totp": {code}})

	req := httptest.NewRequest(http.MethodGet, "/admin/export/stats", nil)
	req.AddCookie(cookie)
	w = do(r, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Header().Get("Content-Disposition"), "admin-stats.json") {
		t.Fatalf("export = %d %q", w.Code, w.Header().Get("Content-Disposition"))
	}
}
