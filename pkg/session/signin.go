package session

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	fallbackUsernameField = "user[email]"
	fallbackPasswordField = "user[password]"
)

// SignIn loads the sign-in page, fills the credential inputs of its form and
// submits it. The cookie session and the page's CSRF token are kept for
// subsequent Fetch calls.
func (c *Client) SignIn(ctx context.Context, username, password string) error {
	signInURL := c.baseURL.ResolveReference(&url.URL{Path: c.config.SignInPath})

	c.logger.Debug().Str("url", signInURL.String()).Msg("Loading sign-in page")

	res, err := c.http.R().
		SetContext(ctx).
		Get(signInURL.String())
	if err != nil {
		return &TransportError{Method: http.MethodGet, Endpoint: c.config.SignInPath, Err: err}
	}
	if res.IsError() {
		return fmt.Errorf("%w: sign-in page returned %s", ErrLoginFailed, res.Status())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return fmt.Errorf("parse sign-in page: %w", err)
	}

	form := doc.Find(c.config.UsernameSelector).Closest("form")
	if form.Length() == 0 {
		return ErrSignInFormNotFound
	}

	fields := formFields(form)
	fields[inputName(form.Find(c.config.UsernameSelector), fallbackUsernameField)] = username
	fields[inputName(form.Find(c.config.PasswordSelector), fallbackPasswordField)] = password
	if c.config.SubmitSelector != "" {
		submit := form.Find(c.config.SubmitSelector)
		if name, ok := submit.Attr("name"); ok && name != "" {
			fields[name] = submit.AttrOr("value", "")
		}
	}

	action, err := signInURL.Parse(form.AttrOr("action", ""))
	if err != nil {
		return fmt.Errorf("parse sign-in form action: %w", err)
	}
	method := strings.ToUpper(form.AttrOr("method", http.MethodPost))

	res, err = c.http.R().
		SetContext(ctx).
		SetFormData(fields).
		Execute(method, action.String())
	if err != nil {
		return &TransportError{Method: method, Endpoint: action.Path, Err: err}
	}
	if res.IsError() {
		return fmt.Errorf("%w: sign-in returned %s", ErrLoginFailed, res.Status())
	}

	landing, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return fmt.Errorf("parse page after sign-in: %w", err)
	}

	// Landing back on the form means the credentials were rejected.
	if landing.Find(c.config.UsernameSelector).Length() > 0 &&
		landing.Find(c.config.PasswordSelector).Length() > 0 {
		return ErrLoginFailed
	}

	c.csrfToken = landing.Find(`meta[name="csrf-token"]`).AttrOr("content", "")

	c.logger.Info().
		Str("username", username).
		Bool("csrf_token", c.csrfToken != "").
		Msg("Signed in")

	return nil
}

// formFields collects the values a browser would submit for form, minus
// buttons and unchecked boxes.
func formFields(form *goquery.Selection) map[string]string {
	fields := make(map[string]string)
	form.Find("input, select, textarea").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			return
		}
		switch strings.ToLower(s.AttrOr("type", "text")) {
		case "submit", "button", "image", "reset", "file":
			return
		case "checkbox", "radio":
			if _, checked := s.Attr("checked"); !checked {
				return
			}
			fields[name] = s.AttrOr("value", "on")
			return
		}
		if goquery.NodeName(s) == "select" {
			fields[name] = s.Find("option[selected]").First().AttrOr("value", "")
			return
		}
		if goquery.NodeName(s) == "textarea" {
			fields[name] = s.Text()
			return
		}
		fields[name] = s.AttrOr("value", "")
	})
	return fields
}

func inputName(s *goquery.Selection, fallback string) string {
	if name := s.AttrOr("name", ""); name != "" {
		return name
	}
	return fallback
}
