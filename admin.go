// admin.go - hidden admin panel for the résumé link, messages and traffic
package main

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
	"pkt.systems/pslog"

	"github.com/adwet007/portfolio/internal/store"
)

const adminCookie = "admin_token"

var errInvalidCredentials = errors.New("invalid credentials")

// adminAuth checks credentials and tracks admin sessions in memory.
// Sessions do not survive a restart.
type adminAuth struct {
	username     string
	password     string
	passwordHash string
	totpSecret   string
	ttl          time.Duration

	// salt for visitor IP hashing, regenerated per process
	salt string

	mu       sync.Mutex
	sessions map[string]time.Time
	now      func() time.Time
}

func newAdminAuth(cfg appConfig, logger pslog.Logger) (*adminAuth, error) {
	salt, err := randomToken()
	if err != nil {
		return nil, err
	}
	a := &adminAuth{
		username:     cfg.AdminUsername,
		password:     cfg.AdminPassword,
		passwordHash: cfg.AdminPasswordHash,
		totpSecret:   cfg.AdminTOTPSecret,
		ttl:          cfg.SessionTTL,
		salt:         salt,
		sessions:     make(map[string]time.Time),
		now:          time.Now,
	}
	if a.username == "" {
		a.username = defaultAdminUsername
		logger.Warn("using default admin username, set ADMIN_USERNAME")
	}
	if a.password == "" && a.passwordHash == "" {
		a.password = defaultAdminPassword
		logger.Warn("using default admin password, set ADMIN_PASSWORD or ADMIN_PASSWORD_HASH")
	}
	if a.totpSecret != "" {
		logger.Info("admin login requires TOTP")
	}
	logger.Info("admin access available", "path", "/admin/login")
	return a, nil
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// hashIP returns a salted, truncated digest so raw addresses are never
// stored. The same IP hashes identically for the life of the process.
func (a *adminAuth) hashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip + a.salt))
	return hex.EncodeToString(sum[:])[:16]
}

func (a *adminAuth) verify(username, password, code string) error {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	var passOK bool
	if a.passwordHash != "" {
		passOK = bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	}
	if !userOK || !passOK {
		return errInvalidCredentials
	}
	if a.totpSecret != "" && !totp.Validate(strings.TrimSpace(code), a.totpSecret) {
		return errors.New("invalid totp")
	}
	return nil
}

func (a *adminAuth) createSession() (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", err
	}
	a.mu.Lock()
	a.sessions[token] = a.now().Add(a.ttl)
	a.mu.Unlock()
	return token, nil
}

func (a *adminAuth) valid(token string) bool {
	if token == "" {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	expires, ok := a.sessions[token]
	if !ok {
		return false
	}
	if a.now().After(expires) {
		delete(a.sessions, token)
		return false
	}
	return true
}

func (a *adminAuth) endSession(token string) {
	a.mu.Lock()
	delete(a.sessions, token)
	a.mu.Unlock()
}

// Middleware to check admin authentication
func (s *server) adminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(adminCookie)
		if err != nil || !s.admin.valid(token) {
			c.Redirect(http.StatusFound, "/admin/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

type resumeForm struct {
	ResumeURL string `form:"resume_url" binding:"required,url"`
}

func (f resumeForm) normalized() (string, error) {
	u, err := url.Parse(strings.TrimSpace(f.ResumeURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errors.New("résumé link must be an absolute http(s) URL")
	}
	return u.String(), nil
}

func (s *server) adminRoutes(r *gin.Engine) {
	r.GET("/admin/login", func(c *gin.Context) {
		c.HTML(http.StatusOK, "admin-login.html", gin.H{
			"title":       "Admin Login",
			"requireTOTP": s.admin.totpSecret != "",
		})
	})

	r.POST("/admin/login", func(c *gin.Context) {
		visitor := s.admin.hashIP(c.ClientIP())
		err := s.admin.verify(c.PostForm("username"), c.PostForm("password"), c.PostForm("totp"))
		if err != nil {
			s.log.Warn("admin login failed", "visitor", visitor, "err", err)
			c.HTML(http.StatusUnauthorized, "admin-login.html", gin.H{
				"error":       "Invalid credentials",
				"requireTOTP": s.admin.totpSecret != "",
			})
			return
		}
		token, err := s.admin.createSession()
		if err != nil {
			s.log.Error("admin session create failed", "err", err)
			c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{"error": "Login unavailable"})
			return
		}
		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(adminCookie, token, int(s.cfg.SessionTTL.Seconds()), "/admin", "", s.cfg.SecureCookies, true)
		s.log.Info("admin login ok", "visitor", visitor)
		c.Redirect(http.StatusFound, "/admin/dashboard")
	})

	r.GET("/admin/logout", func(c *gin.Context) {
		if token, err := c.Cookie(adminCookie); err == nil {
			s.admin.endSession(token)
		}
		c.SetCookie(adminCookie, "", -1, "/admin", "", s.cfg.SecureCookies, true)
		s.log.Info("admin logout", "visitor", s.admin.hashIP(c.ClientIP()))
		c.Redirect(http.StatusFound, "/admin/login")
	})

	admin := r.Group("/admin")
	admin.Use(s.adminAuthMiddleware())

	admin.GET("/dashboard", s.handleDashboard)
	admin.POST("/resume", s.handleSetResume)
	admin.DELETE("/resume", s.handleClearResume)

	admin.GET("/api/stats", func(c *gin.Context) {
		stats, err := s.store.Stats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	admin.GET("/messages", func(c *gin.Context) {
		messages, err := s.store.RecentMessages(c.Request.Context(), 200)
		if err != nil {
			s.log.Warn("load messages failed", "err", err)
			c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{"error": "Failed to load messages"})
			return
		}
		c.HTML(http.StatusOK, "admin-messages.html", gin.H{"messages": messages})
	})

	admin.GET("/visitors", func(c *gin.Context) {
		visitors, err := s.store.RecentVisitors(c.Request.Context(), 200)
		if err != nil {
			s.log.Warn("load visitors failed", "err", err)
			c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{"error": "Failed to load visitors"})
			return
		}
		c.HTML(http.StatusOK, "admin-visitors.html", gin.H{"visitors": visitors})
	})

	admin.POST("/privacy/cleanup", func(c *gin.Context) {
		s.cleanupVisitors(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"message": "Privacy cleanup complete"})
	})

	admin.GET("/export/stats", func(c *gin.Context) {
		stats, err := s.store.Stats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header("Content-Disposition", "attachment; filename=admin-stats.json")
		s.log.Info("admin stats exported", "visitor", s.admin.hashIP(c.ClientIP()))
		c.JSON(http.StatusOK, stats)
	})
}

func (s *server) handleDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := s.store.Stats(ctx)
	if err != nil {
		s.log.Warn("load admin stats failed", "err", err)
		c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{"error": "Failed to load statistics"})
		return
	}
	link, err := s.store.Setting(ctx, store.SettingResumeURL)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.log.Warn("read resume url failed", "err", err)
	}
	c.HTML(http.StatusOK, "admin-dashboard.html", gin.H{
		"stats":     stats,
		"resumeURL": link,
		"saved":     c.Query("saved") == "1",
		"mailReady": s.mailer.Configured(),
	})
}

func (s *server) handleSetResume(c *gin.Context) {
	form := resumeForm{ResumeURL: strings.TrimSpace(c.PostForm("resume_url"))}
	if err := binding.Validator.ValidateStruct(&form); err != nil {
		c.HTML(http.StatusBadRequest, "admin-error.html", gin.H{"error": "Résumé link must be a valid URL"})
		return
	}
	link, err := form.normalized()
	if err != nil {
		c.HTML(http.StatusBadRequest, "admin-error.html", gin.H{"error": err.Error()})
		return
	}
	if err := s.store.SetSetting(c.Request.Context(), store.SettingResumeURL, link); err != nil {
		s.log.Error("save resume url failed", "err", err)
		c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{"error": "Failed to save résumé link"})
		return
	}
	s.log.Info("resume link updated", "visitor", s.admin.hashIP(c.ClientIP()))
	c.Redirect(http.StatusSeeOther, "/admin/dashboard?saved=1")
}

func (s *server) handleClearResume(c *gin.Context) {
	err := s.store.DeleteSetting(c.Request.Context(), store.SettingResumeURL)
	switch {
	case err == nil:
		s.log.Info("resume link cleared", "visitor", s.admin.hashIP(c.ClientIP()))
		c.JSON(http.StatusOK, gin.H{"message": "Résumé link cleared"})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "No résumé link set"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear résumé link"})
	}
}
