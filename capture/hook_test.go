package capture

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/kit/metrics/generic"
	"github.com/stretchr/testify/suite"

	"github.com/enex/errcapture/exclog"
	"github.com/enex/errcapture/metrics"
)

type captured struct {
	err  error
	tags map[string]string
}

type fakeClient struct {
	mu       sync.Mutex
	inits    []Options
	captures []captured
	users    []User
	flushes  int
	stuck    bool
	initErr  error
	panicMsg string
}

func (c *fakeClient) Init(opts Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inits = append(c.inits, opts)
	return c.initErr
}

func (c *fakeClient) Capture(err error, tags map[string]string) {
	if c.panicMsg != "" {
		panic(c.panicMsg)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.captures = append(c.captures, captured{err: err, tags: tags})
}

func (c *fakeClient) SetUser(u User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users = append(c.users, u)
}

func (c *fakeClient) Flush(time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushes++
	return !c.stuck
}

type fakeLog struct {
	mu       sync.Mutex
	inits    []exclog.Options
	records  []exclog.Record
	closed   int
	writeErr error
}

func (l *fakeLog) Initialize(opts exclog.Options) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inits = append(l.inits, opts)
	return nil
}

func (l *fakeLog) Write(r exclog.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, r)
	return l.writeErr
}

func (l *fakeLog) Close() error {
	l.closed++
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type HookTestSuite struct {
	suite.Suite
	client *fakeClient
	base   *fakeLog
	logOpt exclog.Options
}

func (suite *HookTestSuite) SetupTest() {
	suite.client = &fakeClient{}
	suite.base = &fakeLog{}
	suite.logOpt = exclog.Options{File: "exceptions.log", LogSize: 1024}
}

func (suite *HookTestSuite) newHook(cfg Config, opts ...Option) *Hook {
	opts = append([]Option{WithConfig(cfg), WithLogger(discardLogger())}, opts...)
	return New(suite.base, suite.client, opts...)
}

func productionConfig() Config {
	cfg := DefaultConfig()
	cfg.Environment = "production"
	cfg.DSN = "https://example"
	return cfg
}

func (suite *HookTestSuite) TestProductionScenario() {
	h := suite.newHook(productionConfig())
	session := StaticSession{ID: "7", UserEmail: "a@b.com", UserLogin: "bob"}

	suite.NoError(h.Initialize(context.Background(), session, suite.logOpt))

	suite.Require().Len(suite.client.inits, 1)
	opts := suite.client.inits[0]
	suite.Equal("production", opts.Environment)
	suite.Equal("https://example", opts.DSN)
	suite.Equal(DefaultMask, opts.ErrorTypes)
	suite.True(opts.AttachStacktrace)
	suite.True(opts.SendDefaultPII)

	suite.Equal([]User{{ID: "7", Email: "a@b.com", Username: "bob"}}, suite.client.users)
	suite.Equal([]exclog.Options{suite.logOpt}, suite.base.inits)

	thrown := errors.New("boom")
	suite.NoError(h.Write(thrown, exclog.UncaughtException))

	suite.Require().Len(suite.client.captures, 1)
	suite.Same(thrown, suite.client.captures[0].err)
	suite.Equal("UNCAUGHT_EXCEPTION", suite.client.captures[0].tags["log_type"])

	suite.Require().Len(suite.base.records, 1)
	rec := suite.base.records[0]
	suite.Same(thrown, rec.Value)
	suite.Equal(exclog.UncaughtException, rec.Type)
	suite.NotEmpty(rec.OccurrenceID)
	suite.Equal(rec.OccurrenceID, suite.client.captures[0].tags["occurrence_id"])
}

func (suite *HookTestSuite) TestLocalEnvironment() {
	cfg := DefaultConfig()
	cfg.DSN = "https://example"
	h := suite.newHook(cfg)

	suite.NoError(h.Initialize(context.Background(), nil, suite.logOpt))
	suite.NoError(h.Write(errors.New("boom"), exclog.UncaughtException))

	suite.Empty(suite.client.inits)
	suite.Empty(suite.client.captures)
	suite.Len(suite.base.records, 1)
}

func (suite *HookTestSuite) TestRemoteDisabledWithoutDSNOrEnvironment() {
	for _, cfg := range []Config{
		{Environment: "production"},
		{DSN: "https://example"},
		{Environment: LocalEnvironment, DSN: "https://example"},
	} {
		client := &fakeClient{}
		h := New(exclog.Discard, client, WithConfig(cfg), WithLogger(discardLogger()))
		suite.NoError(h.Initialize(context.Background(), nil, suite.logOpt))
		suite.Empty(client.inits, "config %+v", cfg)
	}
}

func (suite *HookTestSuite) TestInitializeIsIdempotent() {
	h := suite.newHook(productionConfig())
	session := StaticSession{ID: "7"}

	for i := 0; i < 3; i++ {
		suite.NoError(h.Initialize(context.Background(), session, suite.logOpt))
	}

	suite.Len(suite.client.inits, 1)
	suite.Len(suite.client.users, 1)
	suite.Len(suite.base.inits, 1)
}

func (suite *HookTestSuite) TestAnonymousSessionDoesNotTouchScope() {
	h := suite.newHook(productionConfig())

	suite.NoError(h.Initialize(context.Background(), StaticSession{}, suite.logOpt))
	suite.Empty(suite.client.users)
}

func (suite *HookTestSuite) TestInitErrorIsSwallowed() {
	suite.client.initErr = errors.New("bad dsn")
	h := suite.newHook(productionConfig())

	suite.NoError(h.Initialize(context.Background(), nil, suite.logOpt))
	suite.Len(suite.base.inits, 1)

	suite.NoError(h.Write(errors.New("boom"), exclog.UncaughtException))
	suite.Empty(suite.client.captures)
	suite.Len(suite.base.records, 1)
}

func (suite *HookTestSuite) TestMessagesAreOnlyLoggedLocally() {
	h := suite.newHook(productionConfig())
	suite.NoError(h.Initialize(context.Background(), nil, suite.logOpt))

	suite.NoError(h.Write("plain message", exclog.CaughtException))

	suite.Empty(suite.client.captures)
	suite.Require().Len(suite.base.records, 1)
	suite.Equal("plain message", suite.base.records[0].Value)
	suite.Empty(suite.base.records[0].OccurrenceID)
}

func (suite *HookTestSuite) TestFilteredOccurrencesAreStillLogged() {
	h := suite.newHook(productionConfig(), WithFilter(SkipLowPriority))
	suite.NoError(h.Initialize(context.Background(), nil, suite.logOpt))

	suite.NoError(h.Write(errors.New("minor"), exclog.LowPriorityError))
	suite.NoError(h.Write(errors.New("major"), exclog.Fatal))

	suite.Require().Len(suite.client.captures, 1)
	suite.EqualError(suite.client.captures[0].err, "major")
	suite.Len(suite.base.records, 2)
}

func (suite *HookTestSuite) TestKindOutsideMaskIsNotReported() {
	h := suite.newHook(productionConfig())
	suite.NoError(h.Initialize(context.Background(), nil, suite.logOpt))

	suite.NoError(h.Write(Errorf(Notice, "undefined index %q", "id"), exclog.IgnoredError))
	suite.NoError(h.Write(Errorf(Warning, "division by zero"), exclog.IgnoredError))

	suite.Require().Len(suite.client.captures, 1)
	suite.EqualError(suite.client.captures[0].err, "division by zero")
	suite.Len(suite.base.records, 2)
}

func (suite *HookTestSuite) TestConfiguredMask() {
	cfg := productionConfig()
	only := Error
	cfg.HandledErrorTypes = &only
	h := suite.newHook(cfg)

	suite.Equal(DefaultMask, h.Level())
	suite.NoError(h.Initialize(context.Background(), nil, suite.logOpt))
	suite.Equal(Error, h.Level())
	suite.Equal(Error, suite.client.inits[0].ErrorTypes)

	suite.NoError(h.Write(Errorf(Warning, "w"), exclog.IgnoredError))
	suite.Empty(suite.client.captures)
}

func (suite *HookTestSuite) TestPanickingClientStillLogsLocally() {
	suite.client.panicMsg = "transport exploded"
	h := suite.newHook(productionConfig())
	suite.NoError(h.Initialize(context.Background(), nil, suite.logOpt))

	suite.NotPanics(func() {
		suite.NoError(h.Write(errors.New("boom"), exclog.UncaughtException))
	})
	suite.Len(suite.base.records, 1)
}

func (suite *HookTestSuite) TestBaseWriteErrorIsReturned() {
	suite.base.writeErr = errors.New("disk full")
	h := suite.newHook(productionConfig())
	suite.NoError(h.Initialize(context.Background(), nil, suite.logOpt))

	err := h.Write(errors.New("boom"), exclog.UncaughtException)
	suite.EqualError(err, "disk full")
	suite.Len(suite.client.captures, 1)
}

func (suite *HookTestSuite) TestMetrics() {
	m := &metrics.HookMetrics{
		Sent:          generic.NewCounter("sent"),
		Filtered:      generic.NewCounter("filtered"),
		Skipped:       generic.NewCounter("skipped"),
		Failed:        generic.NewCounter("failed"),
		LocalWrites:   generic.NewCounter("local_writes"),
		LocalFailures: generic.NewCounter("local_failures"),
		WriteDuration: generic.NewHistogram("duration", 10),
	}
	h := suite.newHook(productionConfig(), WithMetrics(m), WithFilter(SkipLowPriority))
	suite.NoError(h.Initialize(context.Background(), nil, suite.logOpt))

	suite.NoError(h.Write(errors.New("sent"), exclog.Fatal))
	suite.NoError(h.Write(errors.New("filtered"), exclog.LowPriorityError))
	suite.NoError(h.Write("message", exclog.CaughtException))

	suite.Equal(1.0, m.Sent.(*generic.Counter).Value())
	suite.Equal(1.0, m.Filtered.(*generic.Counter).Value())
	suite.Equal(1.0, m.Skipped.(*generic.Counter).Value())
	suite.Equal(0.0, m.Failed.(*generic.Counter).Value())
	suite.Equal(3.0, m.LocalWrites.(*generic.Counter).Value())
}

func (suite *HookTestSuite) TestCloseFlushesAndClosesBase() {
	h := suite.newHook(productionConfig())
	suite.NoError(h.Initialize(context.Background(), nil, suite.logOpt))

	suite.NoError(h.Close())
	suite.Equal(1, suite.client.flushes)
	suite.Equal(1, suite.base.closed)
}

func (suite *HookTestSuite) TestCloseRetriesStuckFlush() {
	suite.client.stuck = true
	h := suite.newHook(productionConfig())
	suite.NoError(h.Initialize(context.Background(), nil, suite.logOpt))

	err := h.Close()
	suite.ErrorIs(err, errFlushTimeout)
	suite.Equal(flushAttempts, suite.client.flushes)
	suite.Equal(1, suite.base.closed)
}

func (suite *HookTestSuite) TestCloseWithoutRemoteSkipsFlush() {
	h := suite.newHook(DefaultConfig())
	suite.NoError(h.Initialize(context.Background(), nil, suite.logOpt))

	suite.NoError(h.Close())
	suite.Zero(suite.client.flushes)
}

func (suite *HookTestSuite) TestConcurrentInitializeAndWrite() {
	h := suite.newHook(productionConfig())

	const writers = 16
	var wg sync.WaitGroup
	wg.Add(writers + 1)
	go func() {
		defer wg.Done()
		suite.NoError(h.Initialize(context.Background(), nil, suite.logOpt))
	}()
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			_ = h.Write(errors.New("boom"), exclog.UncaughtException)
			_ = h.Level()
		}()
	}
	wg.Wait()

	suite.Len(suite.base.records, writers)
	suite.LessOrEqual(len(suite.client.captures), writers)
	suite.Equal(DefaultMask, h.Level())
}

func TestHookTestSuite(t *testing.T) {
	suite.Run(t, new(HookTestSuite))
}
