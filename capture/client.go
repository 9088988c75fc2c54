package capture

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

// Options are handed to the remote client once, at initialization.
type Options struct {
	DSN              string
	Environment      string
	Release          string
	ErrorTypes       Mask
	AttachStacktrace bool
	SendDefaultPII   bool
	Debug            bool
}

// User is the identity attached to every remote event.
type User struct {
	ID       string
	Email    string
	Username string
}

// Client is the remote error tracker as the hook sees it.
type Client interface {
	Init(opts Options) error
	Capture(err error, tags map[string]string)
	SetUser(u User)
	Flush(timeout time.Duration) bool
}

// SentryOption configures a SentryClient.
type SentryOption func(*SentryClient)

// BeforeSend is called with every event before it leaves the process.
// Returning nil drops the event.
func BeforeSend(fn func(*sentry.Event, *sentry.EventHint) *sentry.Event) SentryOption {
	return func(c *SentryClient) {
		c.beforeSend = fn
	}
}

// HTTPClient sets the client used by the default transport.
func HTTPClient(hc *http.Client) SentryOption {
	return func(c *SentryClient) {
		c.httpClient = hc
	}
}

// SentryClient is a Client backed by its own sentry hub. Scope changes made
// before Init are kept and apply once the client is bound.
type SentryClient struct {
	hub        *sentry.Hub
	beforeSend func(*sentry.Event, *sentry.EventHint) *sentry.Event
	httpClient *http.Client

	once    sync.Once
	initErr error
}

// NewSentryClient returns an uninitialized client. Until Init succeeds
// every capture is a no-op.
func NewSentryClient(opts ...SentryOption) *SentryClient {
	c := &SentryClient{
		hub: sentry.NewHub(nil, sentry.NewScope()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Hub exposes the underlying hub, e.g. to set it on a context.
func (c *SentryClient) Hub() *sentry.Hub {
	return c.hub
}

// Init creates the sentry client on first call. Later calls return the
// first call's result.
func (c *SentryClient) Init(opts Options) error {
	c.once.Do(func() {
		client, err := sentry.NewClient(sentry.ClientOptions{
			Dsn:              opts.DSN,
			Environment:      opts.Environment,
			Release:          opts.Release,
			AttachStacktrace: opts.AttachStacktrace,
			SendDefaultPII:   opts.SendDefaultPII,
			Debug:            opts.Debug,
			BeforeSend:       c.beforeSend,
			HTTPClient:       c.httpClient,
		})
		if err != nil {
			c.initErr = fmt.Errorf("sentry init: %w", err)
			return
		}

		c.hub.BindClient(client)
		if opts.ErrorTypes != 0 {
			c.hub.ConfigureScope(func(scope *sentry.Scope) {
				scope.SetTag("error_types", opts.ErrorTypes.String())
			})
		}
	})

	return c.initErr
}

func (c *SentryClient) Initialized() bool {
	return c.hub.Client() != nil
}

func (c *SentryClient) Capture(err error, tags map[string]string) {
	if err == nil || c.hub.Client() == nil {
		return
	}

	c.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		c.hub.CaptureException(err)
	})
}

func (c *SentryClient) SetUser(u User) {
	c.hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetUser(sentry.User{
			ID:       u.ID,
			Email:    u.Email,
			Username: u.Username,
		})
	})
}

func (c *SentryClient) Flush(timeout time.Duration) bool {
	if c.hub.Client() == nil {
		return true
	}
	return c.hub.Flush(timeout)
}
