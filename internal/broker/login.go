package broker

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/pquerna/otp/totp"

	"gttdash/internal/domain"
)

// Authenticator obtains a Kite request_token by logging in interactively.
type Authenticator interface {
	RequestToken(ctx context.Context) (string, error)
}

// BrowserLogin drives the Kite login page in headless Chrome: user id and
// password, then the TOTP step, then the redirect carrying request_token.
type BrowserLogin struct {
	LoginURL   string // full URL including api_key
	UserID     string
	Password   string
	TOTPSecret string
	Headless   bool
	ExecPath   string
	Timeout    time.Duration

	log *slog.Logger
}

var _ Authenticator = (*BrowserLogin)(nil)

// NewBrowserLogin creates a BrowserLogin.
func NewBrowserLogin(loginURL, userID, password, totpSecret string, log *slog.Logger) *BrowserLogin {
	if log == nil {
		log = slog.Default()
	}
	return &BrowserLogin{
		LoginURL:   loginURL,
		UserID:     userID,
		Password:   password,
		TOTPSecret: totpSecret,
		Headless:   true,
		Timeout:    60 * time.Second,
		log:        log.With("component", "browser-login"),
	}
}

// The TOTP input is a type="number" field re-rendered in place of the user
// id field. Setting its value through the native setter and dispatching
// input/change is what the page's change handlers observe.
const totpScript = `(function(code) {
	var el = document.getElementById('userid');
	el.type = 'text';
	el.focus();
	var setter = Object.getOwnPropertyDescriptor(window.HTMLInputElement.prototype, 'value').set;
	setter.call(el, code);
	el.dispatchEvent(new Event('input', {bubbles: true}));
	el.dispatchEvent(new Event('change', {bubbles: true}));
	el.type = 'number';
	document.querySelector('button[type="submit"]').click();
	return true;
})(%s)`

// RequestToken runs the login flow and returns the request_token from the
// redirect URL.
func (b *BrowserLogin) RequestToken(ctx context.Context) (string, error) {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if b.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	timeout := b.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	runCtx, cancel := context.WithTimeout(browserCtx, timeout)
	defer cancel()

	b.log.Info("starting browser login", "headless", b.Headless)

	// Start without cookies so a stale Kite session cannot skip the form.
	if err := chromedp.Run(runCtx,
		network.ClearBrowserCookies(),
		chromedp.Navigate(b.LoginURL),
		chromedp.WaitVisible(`#userid`, chromedp.ByQuery),
		chromedp.SendKeys(`#userid`, b.UserID, chromedp.ByQuery),
		chromedp.SendKeys(`#password`, b.Password, chromedp.ByQuery),
		chromedp.Click(`button[type="submit"]`, chromedp.ByQuery),
	); err != nil {
		return "", fmt.Errorf("credentials step: %w", err)
	}

	var ready bool
	if err := chromedp.Run(runCtx,
		chromedp.Poll(`(function() {
			var el = document.getElementById('userid');
			return !!el && el.type === 'number';
		})()`, &ready, chromedp.WithPollingInterval(250*time.Millisecond)),
	); err != nil {
		return "", fmt.Errorf("waiting for totp step: %w", err)
	}

	code, err := totp.GenerateCode(b.TOTPSecret, time.Now())
	if err != nil {
		return "", fmt.Errorf("generating totp: %w", err)
	}

	var submitted bool
	var location string
	if err := chromedp.Run(runCtx,
		chromedp.Evaluate(fmt.Sprintf(totpScript, strconv.Quote(code)), &submitted),
		chromedp.Poll(`window.location.href.indexOf('request_token') !== -1`, &ready,
			chromedp.WithPollingInterval(250*time.Millisecond)),
		chromedp.Location(&location),
	); err != nil {
		return "", fmt.Errorf("totp step: %w", err)
	}

	token, err := requestTokenFrom(location)
	if err != nil {
		return "", err
	}
	b.log.Info("browser login complete")
	return token, nil
}

// requestTokenFrom extracts the request_token query parameter.
func requestTokenFrom(location string) (string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parsing redirect url: %w", err)
	}
	token := u.Query().Get("request_token")
	if token == "" {
		return "", fmt.Errorf("redirect url has no request_token")
	}
	return token, nil
}

// ---------------------------------------------------------------------------
// KiteProvider
// ---------------------------------------------------------------------------

var _ SessionProvider = (*KiteProvider)(nil)

// KiteProvider logs in with an Authenticator and exchanges the request
// token for a Kite session.
type KiteProvider struct {
	client *KiteClient
	auth   Authenticator
	log    *slog.Logger
}

// NewKiteProvider creates a KiteProvider.
func NewKiteProvider(client *KiteClient, auth Authenticator, log *slog.Logger) *KiteProvider {
	if log == nil {
		log = slog.Default()
	}
	return &KiteProvider{client: client, auth: auth, log: log.With("provider", "kite")}
}

// Name returns "kite".
func (p *KiteProvider) Name() string { return "kite" }

// Login performs a full browser login and token exchange.
func (p *KiteProvider) Login(ctx context.Context) (Session, error) {
	start := time.Now()
	requestToken, err := p.auth.RequestToken(ctx)
	if err != nil {
		return nil, &domain.SessionError{Provider: "kite", Op: "browser login", Err: err}
	}
	accessToken, err := p.client.ExchangeToken(ctx, requestToken)
	if err != nil {
		return nil, &domain.SessionError{Provider: "kite", Op: "token exchange", Err: err}
	}
	p.log.Info("session initialized", "elapsed", time.Since(start).Round(time.Millisecond))
	return p.client.Session(accessToken), nil
}
