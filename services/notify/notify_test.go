package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/rcfms-admin/identity"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingSender struct {
	name    string
	err     error
	mu      sync.Mutex
	sent    []Credentials
	entered chan struct{}
	release chan struct{}
}

func (s *recordingSender) Name() string { return s.name }

func (s *recordingSender) SendCredentials(ctx context.Context, c Credentials) error {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, c)
	return s.err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type channelFailures struct {
	mu     sync.Mutex
	counts map[string]int
}

func (f *channelFailures) NotificationFailure(channel string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts == nil {
		f.counts = map[string]int{}
	}
	f.counts[channel]++
}

func (f *channelFailures) get(channel string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[channel]
}

func testCredentials() Credentials {
	return Credentials{
		Email:    "new@rcfms.org",
		FullName: "New Staff",
		WorkID:   "W-7",
		Password: identity.NewSecret("temp-secret-123"),
	}
}

func TestDispatcher_DeliversToEveryChannel(t *testing.T) {
	ok := &recordingSender{name: "ok"}
	failing := &recordingSender{name: "broken", err: errors.New("relay refused")}
	failures := &channelFailures{}

	d := NewDispatcher(zap.NewNop(), failures, DefaultConfig(), failing, ok)
	require.NoError(t, d.Start())

	require.NoError(t, d.SendCredentials(context.Background(), testCredentials()))
	require.NoError(t, d.Stop(5*time.Second))

	assert.Equal(t, 1, ok.count())
	assert.Equal(t, 1, failing.count())
	assert.Equal(t, 1, failures.get("broken"))
	assert.Equal(t, 0, failures.get("ok"))
}

func TestDispatcher_NotStarted(t *testing.T) {
	failures := &channelFailures{}
	d := NewDispatcher(zap.NewNop(), failures, DefaultConfig())

	err := d.SendCredentials(context.Background(), testCredentials())
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.Equal(t, 1, failures.get("queue"))
	assert.Error(t, d.Stop(time.Second))
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	blocking := &recordingSender{name: "slow", entered: make(chan struct{}, 1), release: make(chan struct{})}
	failures := &channelFailures{}
	d := NewDispatcher(zap.NewNop(), failures, Config{BufferSize: 1, WorkerCount: 1, SendTimeout: time.Second}, blocking)
	require.NoError(t, d.Start())

	require.NoError(t, d.SendCredentials(context.Background(), testCredentials()))
	<-blocking.entered // worker holds the first job
	require.NoError(t, d.SendCredentials(context.Background(), testCredentials()))

	err := d.SendCredentials(context.Background(), testCredentials())
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 1, failures.get("queue"))

	close(blocking.release)
	go func() {
		for range blocking.entered {
		}
	}()
	require.NoError(t, d.Stop(5*time.Second))
	close(blocking.entered)
	assert.Equal(t, 2, blocking.count())

	assert.ErrorIs(t, d.SendCredentials(context.Background(), testCredentials()), ErrNotStarted)
}

func TestDispatcher_Stats(t *testing.T) {
	d := NewDispatcher(zap.NewNop(), nil, Config{BufferSize: 8, WorkerCount: 3})
	assert.False(t, d.GetStats().Started)
	require.NoError(t, d.Start())
	assert.Error(t, d.Start())

	stats := d.GetStats()
	assert.True(t, stats.Started)
	assert.Equal(t, 8, stats.BufferSize)
	assert.Equal(t, 3, stats.WorkerCount)
	require.NoError(t, d.Stop(time.Second))
}

func TestSMTPSender_BuildMessage(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.org", From: "RCFMS <noreply@rcfms.com>"})
	c := testCredentials()
	c.FullName = "<script>alert(1)</script>"

	raw, err := s.buildMessage(c, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	msg := string(raw)

	headers, body, found := strings.Cut(msg, "\r\n\r\n")
	require.True(t, found)
	assert.Contains(t, headers, "From: RCFMS <noreply@rcfms.com>")
	assert.Contains(t, headers, "To: new@rcfms.org")
	assert.Contains(t, headers, "Subject: "+WelcomeSubject)
	assert.Contains(t, headers, `Content-Type: text/html; charset="UTF-8"`)

	assert.Contains(t, body, "temp-secret-123")
	assert.Contains(t, body, "W-7")
	assert.Contains(t, body, "2026 RCFMS")
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;script&gt;")
}

func TestEnvelopeAddress(t *testing.T) {
	assert.Equal(t, "noreply@rcfms.com", envelopeAddress("RCFMS <noreply@rcfms.com>"))
	assert.Equal(t, "noreply@rcfms.com", envelopeAddress(" noreply@rcfms.com "))
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaSender_Publishes(t *testing.T) {
	w := &fakeWriter{}
	k := &KafkaSender{writer: w}

	require.NoError(t, k.SendCredentials(context.Background(), testCredentials()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "new@rcfms.org", string(w.msgs[0].Key))

	var event CredentialsIssuedEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &event))
	assert.Equal(t, "W-7", event.WorkID)
	assert.False(t, event.IssuedAt.IsZero())

	w.err = errors.New("leader not available")
	assert.Error(t, k.SendCredentials(context.Background(), testCredentials()))

	require.NoError(t, k.Close())
	assert.True(t, w.closed)
}

func TestKafkaSender_NeverPublishesSecret(t *testing.T) {
	w := &fakeWriter{}
	k := &KafkaSender{writer: w}

	creds := testCredentials()
	creds.Password = identity.NewSecret("deadbeefcafebabe")
	require.NoError(t, k.SendCredentials(context.Background(), creds))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.NotContains(t, string(msg.Value), "deadbeefcafebabe")
	assert.NotContains(t, string(msg.Key), "deadbeefcafebabe")
	for _, h := range msg.Headers {
		assert.NotContains(t, string(h.Value), "deadbeefcafebabe")
	}

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &fields))
	assert.ElementsMatch(t, []string{"email", "full_name", "work_id", "issued_at"}, keys(fields))
}

func keys(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestLogSender_DoesNotLogSecret(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewLogSender(zap.New(core))

	require.NoError(t, l.SendCredentials(context.Background(), testCredentials()))
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "new@rcfms.org", fields["email"])
	assert.Equal(t, "[REDACTED]", fields["password"])
}
