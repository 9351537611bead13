// Package portal drives a headless Chrome session against the volunteer
// and box-office portals and captures their report exports.
package portal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"

	"github.com/hauntworks/hauntsync/ratelimit"
)

// Portal kinds
const (
	KindIVolunteer = "ivolunteer"
	KindPassage    = "passage"
)

const defaultNavTimeout = 45 * time.Second

// Config holds portal session configuration. Credentials come from the
// environment only.
type Config struct {
	Kind        string
	Email       string
	Password    string
	Org         string // iVolunteer organization slug
	Headless    bool
	DownloadDir string
	MaxAttempts int
	NavTimeout  time.Duration
}

// ConfigFromEnv builds a Config for the named portal kind from environment
// variables: IVOLUNTEER_EMAIL / IVOLUNTEER_PASSWORD / IVOLUNTEER_ORG or
// PASSAGE_EMAIL / PASSAGE_PASSWORD, plus PORTAL_MAX_ATTEMPTS.
func ConfigFromEnv(kind string) (*Config, error) {
	cfg := &Config{
		Kind:        kind,
		Headless:    true,
		MaxAttempts: 3,
		NavTimeout:  defaultNavTimeout,
	}

	switch kind {
	case KindIVolunteer:
		cfg.Email = os.Getenv("IVOLUNTEER_EMAIL")
		cfg.Password = os.Getenv("IVOLUNTEER_PASSWORD")
		cfg.Org = os.Getenv("IVOLUNTEER_ORG")
		if cfg.Email == "" || cfg.Password == "" || cfg.Org == "" {
			return nil, fmt.Errorf("IVOLUNTEER_EMAIL, IVOLUNTEER_PASSWORD and IVOLUNTEER_ORG must be set")
		}
	case KindPassage:
		cfg.Email = os.Getenv("PASSAGE_EMAIL")
		cfg.Password = os.Getenv("PASSAGE_PASSWORD")
		if cfg.Email == "" || cfg.Password == "" {
			return nil, fmt.Errorf("PASSAGE_EMAIL and PASSAGE_PASSWORD must be set")
		}
	default:
		return nil, fmt.Errorf("unknown portal kind %q", kind)
	}

	if v := os.Getenv("PORTAL_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid PORTAL_MAX_ATTEMPTS %q", v)
		}
		cfg.MaxAttempts = n
	}

	return cfg, nil
}

// LoginURL returns the sign-in page for the configured portal
func (c *Config) LoginURL() string {
	if c.Kind == KindPassage {
		return "https://www.gopassage.com/users/sign_in"
	}
	return fmt.Sprintf("https://%s.ivolunteer.com/admin", c.Org)
}

// ViewURL resolves a portal view ID to a navigable URL
func (c *Config) ViewURL(viewID string) string {
	if c.Kind == KindPassage {
		return "https://www.gopassage.com/" + strings.TrimPrefix(viewID, "/")
	}
	return fmt.Sprintf("https://%s.ivolunteer.com/admin/%s", c.Org, strings.TrimPrefix(viewID, "/"))
}

// Session is a logged-in browser session. Single-use and single-goroutine;
// Close must be called on every path.
type Session struct {
	cfg     *Config
	ctx     context.Context
	cancels []context.CancelFunc
	limiter *ratelimit.Limiter
	closed  bool
}

// Open starts a Chrome process, logs into the portal and returns a live
// session. Login failures from bad credentials return *AuthError and are
// never retried; transient navigation failures are retried with backoff up
// to cfg.MaxAttempts.
func Open(ctx context.Context, cfg *Config) (*Session, error) {
	if cfg.NavTimeout == 0 {
		cfg.NavTimeout = defaultNavTimeout
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.WindowSize(1600, 1080),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		cfg:     cfg,
		ctx:     browserCtx,
		cancels: []context.CancelFunc{browserCancel, allocCancel},
		limiter: ratelimit.New(&ratelimit.Config{
			Delay:             time.Second,
			BackoffMultiplier: 2.0,
			MaxDelay:          time.Minute,
			MaxAttempts:       cfg.MaxAttempts,
			Retryable:         IsTransient,
		}),
	}

	if cfg.DownloadDir != "" {
		if err := os.MkdirAll(cfg.DownloadDir, 0o755); err != nil {
			s.Close()
			return nil, fmt.Errorf("create download dir: %w", err)
		}
		err := chromedp.Run(browserCtx,
			browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
				WithDownloadPath(cfg.DownloadDir),
		)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("set download path: %w", err)
		}
	}

	if err := s.limiter.ExecuteWithRetry(ctx, func() error {
		return s.login()
	}); err != nil {
		s.Close()
		return nil, err
	}

	slog.Info("Portal session opened", "portal", cfg.Kind)
	return s, nil
}

// login navigates to the sign-in page, submits credentials and waits for
// either the admin landing page or an error banner.
func (s *Session) login() error {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.NavTimeout)
	defer cancel()

	err := chromedp.Run(ctx,
		chromedp.Navigate(s.cfg.LoginURL()),
		chromedp.WaitVisible(`input[type="password"]`, chromedp.ByQuery),
		chromedp.SendKeys(loginEmailSelector(s.cfg.Kind), s.cfg.Email, chromedp.ByQuery),
		chromedp.SendKeys(`input[type="password"]`, s.cfg.Password, chromedp.ByQuery),
		chromedp.Click(`button[type="submit"], input[type="submit"]`, chromedp.ByQuery),
	)
	if err != nil {
		return &TransientError{Op: "login navigation", Err: err}
	}

	outcome, err := s.awaitLoginOutcome(ctx)
	if err != nil {
		return &TransientError{Op: "login outcome", Err: err}
	}
	if outcome != "" {
		return &AuthError{Portal: s.cfg.Kind, Reason: outcome}
	}
	return nil
}

func loginEmailSelector(kind string) string {
	if kind == KindPassage {
		return `input[name="user[email]"]`
	}
	return `input[type="email"], input[name="email"]`
}

// awaitLoginOutcome polls the page for an error banner or for the
// credential form disappearing. Returns the banner text for auth failures,
// empty string for success.
func (s *Session) awaitLoginOutcome(ctx context.Context) (string, error) {
	const script = `(function() {
		var banner = document.querySelector('.alert-danger, .flash-error, .error-banner, #flash_alert');
		if (banner && banner.textContent.trim() !== '') {
			return 'error:' + banner.textContent.trim();
		}
		if (!document.querySelector('input[type="password"]')) {
			return 'ok';
		}
		return '';
	})()`

	deadline := time.Now().Add(s.cfg.NavTimeout)
	for {
		var state string
		if err := chromedp.Run(ctx, chromedp.Evaluate(script, &state)); err != nil {
			return "", err
		}
		if state == "ok" {
			return "", nil
		}
		if strings.HasPrefix(state, "error:") {
			return strings.TrimPrefix(state, "error:"), nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("login outcome not resolved within %s", s.cfg.NavTimeout)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// NavigateTo opens a portal view by ID, retrying transient failures
func (s *Session) NavigateTo(ctx context.Context, viewID string) error {
	url := s.cfg.ViewURL(viewID)
	return s.limiter.ExecuteWithRetry(ctx, func() error {
		navCtx, cancel := context.WithTimeout(s.ctx, s.cfg.NavTimeout)
		defer cancel()
		if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
			return &TransientError{Op: "navigate " + viewID, Err: err}
		}
		return nil
	})
}

// WaitFor blocks until the selector is visible or the timeout elapses
func (s *Session) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	if err := chromedp.Run(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return &TransientError{Op: "wait for " + selector, Err: err}
	}
	return nil
}

// Click clicks the first element matching the selector
func (s *Session) Click(ctx context.Context, selector string) error {
	clickCtx, cancel := context.WithTimeout(s.ctx, s.cfg.NavTimeout)
	defer cancel()
	if err := chromedp.Run(clickCtx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return &TransientError{Op: "click " + selector, Err: err}
	}
	return nil
}

// DownloadExport clicks the export trigger, waits for the download to
// complete in the session's download directory, and returns the final path
// of the renamed file. job names the file prefix.
func (s *Session) DownloadExport(ctx context.Context, trigger, job string) (string, error) {
	if s.cfg.DownloadDir == "" {
		return "", fmt.Errorf("session has no download directory configured")
	}

	before, err := snapshotDir(s.cfg.DownloadDir)
	if err != nil {
		return "", fmt.Errorf("snapshot download dir: %w", err)
	}

	if err := s.Click(ctx, trigger); err != nil {
		return "", err
	}

	path, err := WaitForNewDownload(ctx, s.cfg.DownloadDir, before, job, s.cfg.NavTimeout)
	if err != nil {
		return "", err
	}

	slog.Info("Export downloaded", "portal", s.cfg.Kind, "job", job, "file", path)
	return path, nil
}

// Close releases the browser process. Safe to call multiple times.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	for _, cancel := range s.cancels {
		cancel()
	}
}
