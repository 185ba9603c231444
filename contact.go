package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/adwet007/portfolio/internal/mailer"
	"github.com/adwet007/portfolio/internal/store"
)

type contactForm struct {
	Name    string `form:"name" binding:"required"`
	Email   string `form:"email" binding:"required,email"`
	Subject string `form:"subject" binding:"required"`
	Message string `form:"message" binding:"required"`
}

// validate trims every field before checking it, so whitespace-only input
// counts as missing.
func (f *contactForm) validate() []string {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Subject = strings.TrimSpace(f.Subject)
	f.Message = strings.TrimSpace(f.Message)

	err := binding.Validator.ValidateStruct(f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			problems = append(problems, fmt.Sprintf("%s is required", fe.Field()))
		case "email":
			problems = append(problems, "Please enter a valid email")
		default:
			problems = append(problems, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return problems
}

// Handle contact form submission with HTMX. The message is always stored;
// mail delivery is attempted when SMTP is configured.
func (s *server) handleContact(c *gin.Context) {
	form := contactForm{
		Name:    c.PostForm("name"),
		Email:   c.PostForm("email"),
		Subject: c.PostForm("subject"),
		Message: c.PostForm("message"),
	}
	if problems := form.validate(); len(problems) > 0 {
		c.HTML(http.StatusOK, "contact-error.html", gin.H{
			"error":    "Please fix the following:",
			"problems": problems,
		})
		return
	}

	ctx := c.Request.Context()
	id, err := s.store.SaveMessage(ctx, store.Message{
		Name:    form.Name,
		Email:   form.Email,
		Subject: form.Subject,
		Body:    form.Message,
	})
	if err != nil {
		s.log.Error("save contact message failed", "err", err)
		c.HTML(http.StatusOK, "contact-error.html", gin.H{
			"error": "Sorry, there was an error sending your message. Please try again later.",
		})
		return
	}

	if s.mailer.Configured() {
		sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		err := s.mailer.Deliver(sendCtx, mailer.Message{
			Name:    form.Name,
			Email:   form.Email,
			Subject: form.Subject,
			Body:    form.Message,
		})
		if err != nil {
			s.log.Error("send contact email failed", "message_id", id, "err", err)
			c.HTML(http.StatusOK, "contact-error.html", gin.H{
				"error": "Sorry, there was an error sending your message. Please try again later.",
			})
			return
		}
		if err := s.store.MarkDelivered(ctx, id); err != nil {
			s.log.Warn("mark message delivered failed", "message_id", id, "err", err)
		}
		s.log.Info("contact email sent", "message_id", id)
	}

	c.HTML(http.StatusOK, "contact-success.html", gin.H{
		"success": "Message sent successfully! I'll get back to you soon.",
	})
}
