package main

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"pkt.systems/pslog"

	"github.com/adwet007/portfolio/internal/content"
	"github.com/adwet007/portfolio/internal/mailer"
	"github.com/adwet007/portfolio/internal/sections"
	"github.com/adwet007/portfolio/internal/store"
	"github.com/adwet007/portfolio/internal/typing"
)

const themeCookie = "theme"

type server struct {
	cfg     appConfig
	site    *content.Site
	store   *store.Store
	mailer  *mailer.Mailer
	admin   *adminAuth
	log     pslog.Logger
	started time.Time

	// background work started by requests, waited on at shutdown
	bg sync.WaitGroup
}

func newServer(cfg appConfig, site *content.Site, st *store.Store, logger pslog.Logger) (*server, error) {
	// fail at startup, not on the first visitor
	if _, err := typing.New(site.Phrases, typing.WithDelays(cfg.typingDelays())); err != nil {
		return nil, err
	}
	admin, err := newAdminAuth(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &server{
		cfg:   cfg,
		site:  site,
		store: st,
		mailer: &mailer.Mailer{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			To:   cfg.ToEmail,
		},
		admin:   admin,
		log:     logger,
		started: time.Now(),
	}, nil
}

func (s *server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), s.visitorTracking())

	tmpl := template.Must(template.New("").Funcs(templateFuncs).ParseFS(assets, "templates/*.html"))
	r.SetHTMLTemplate(tmpl)
	r.StaticFS("/static", staticFS())

	r.GET("/", s.handleIndex)
	r.GET("/healthz", s.handleHealth)
	r.GET("/typing/stream", s.handleTypingStream)
	r.POST("/api/active-section", s.handleActiveSection)
	r.GET("/projects/:id", s.handleProject)
	r.POST("/contact", s.handleContact)
	r.POST("/theme", s.handleTheme)
	r.GET("/resume", s.handleResume)
	r.GET("/privacy", func(c *gin.Context) {
		c.HTML(http.StatusOK, "privacy.html", gin.H{"title": "Privacy Policy"})
	})

	s.adminRoutes(r)
	return r
}

func (s *server) wait() { s.bg.Wait() }

func (s *server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path += "?" + c.Request.URL.RawQuery
		}
		s.log.Info("http request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"bytes", c.Writer.Size(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// visitorTracking records page views with a hashed client IP. Static
// assets, admin pages and the privacy page are skipped and DNT is honored.
func (s *server) visitorTracking() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if c.Request.Method != http.MethodGet ||
			strings.HasPrefix(path, "/static/") ||
			strings.HasPrefix(path, "/admin") ||
			strings.HasPrefix(path, "/favicon") ||
			strings.HasPrefix(path, "/privacy") ||
			path == "/typing/stream" ||
			path == "/healthz" {
			c.Next()
			return
		}
		if c.GetHeader("DNT") == "1" {
			c.Next()
			return
		}

		hashed := s.admin.hashIP(c.ClientIP())
		userAgent := c.GetHeader("User-Agent")
		s.bg.Add(1)
		go func() {
			defer s.bg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.store.RecordVisit(ctx, hashed, userAgent, path); err != nil {
				s.log.Warn("record visitor failed", "err", err)
			}
		}()
		c.Next()
	}
}

func (s *server) runRetention(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		s.cleanupVisitors(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *server) cleanupVisitors(ctx context.Context) {
	n, err := s.store.CleanupVisitors(ctx, s.cfg.VisitorRetention)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.log.Warn("visitor cleanup failed", "err", err)
		}
		return
	}
	if n > 0 {
		s.log.Info("visitor cleanup", "removed", n, "older_than", s.cfg.VisitorRetention.String())
	}
}

func theme(c *gin.Context) string {
	if v, err := c.Cookie(themeCookie); err == nil && v == "light" {
		return "light"
	}
	return "dark"
}

func (s *server) handleIndex(c *gin.Context) {
	_, err := s.store.Setting(c.Request.Context(), store.SettingResumeURL)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.log.Warn("read resume url failed", "err", err)
	}
	c.HTML(http.StatusOK, "index.html", gin.H{
		"site":           s.site,
		"theme":          theme(c),
		"hasResumeLink":  err == nil,
		"topBias":        s.cfg.SectionTopBias,
		"scrollDebounce": s.cfg.SectionScrollDebounce.Milliseconds(),
	})
}

func (s *server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.started).String(),
	})
}

// handleTypingStream sends one "typing" event per tick of a fresh cycler.
// The request context owns the pending timer, so a disconnect stops it.
func (s *server) handleTypingStream(c *gin.Context) {
	cycler, err := typing.New(s.site.Phrases, typing.WithDelays(s.cfg.typingDelays()))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	err = typing.Run(c.Request.Context(), cycler, s.cfg.TypingStartDelay, func(text string) error {
		c.SSEvent("typing", text)
		c.Writer.Flush()
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		s.log.Warn("typing stream ended", "err", err)
	}
}

type activeSectionRequest struct {
	ScrollY  *float64           `json:"scroll_y" binding:"required"`
	TopBias  *float64           `json:"top_bias"`
	Previous string             `json:"previous"`
	Sections []sections.Section `json:"sections" binding:"required"`
}

func (s *server) handleActiveSection(c *gin.Context) {
	var req activeSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing scroll_y/sections"})
		return
	}

	tracker, err := sections.NewTracker(req.Sections,
		sections.WithHomeID(s.site.Nav[0].ID),
		sections.WithTopThreshold(s.cfg.SectionTopThreshold),
		sections.WithActive(req.Previous),
	)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bias := s.cfg.SectionTopBias
	if req.TopBias != nil {
		bias = *req.TopBias
	}
	c.JSON(http.StatusOK, gin.H{"active": tracker.Evaluate(*req.ScrollY, bias)})
}

func (s *server) handleProject(c *gin.Context) {
	project, ok := s.site.Project(c.Param("id"))
	if !ok {
		c.HTML(http.StatusNotFound, "project-modal.html", gin.H{
			"error": fmt.Sprintf("Unknown project %q", c.Param("id")),
		})
		return
	}
	c.HTML(http.StatusOK, "project-modal.html", gin.H{"project": project})
}

func (s *server) handleTheme(c *gin.Context) {
	next := "light"
	if theme(c) == "light" {
		next = "dark"
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(themeCookie, next, 365*24*3600, "/", "", s.cfg.SecureCookies, false)
	c.JSON(http.StatusOK, gin.H{"theme": next})
}

func (s *server) handleResume(c *gin.Context) {
	link, err := s.store.Setting(c.Request.Context(), store.SettingResumeURL)
	switch {
	case err == nil:
		c.Redirect(http.StatusFound, link)
	case errors.Is(err, store.ErrNotFound):
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.site.ResumeFilename()))
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(strings.TrimSpace(s.site.Resume)+"\n"))
	default:
		s.log.Warn("read resume url failed", "err", err)
		c.String(http.StatusInternalServerError, "resume unavailable")
	}
}
