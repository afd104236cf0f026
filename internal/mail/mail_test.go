package mail

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantdesk/backend/internal/platform/metrics"
)

type recordingSender struct {
	mu   sync.Mutex
	msgs []Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return s.err
}

func (s *recordingSender) sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.msgs...)
}

func TestPasswordReset(t *testing.T) {
	msg, err := PasswordReset("bob@x.com", "Bob Smith", "bob", "https://app/reset?uid=MQ&token=t")
	require.NoError(t, err)
	assert.Equal(t, KindPasswordReset, msg.Kind)
	assert.Equal(t, []string{"bob@x.com"}, msg.To)
	assert.Contains(t, msg.Body, "Hello Bob Smith")
	assert.Contains(t, msg.Body, `"bob"`)
	assert.Contains(t, msg.Body, "https://app/reset?uid=MQ&token=t")
}

func TestInvitation(t *testing.T) {
	msg, err := Invitation("bob@x.com", "Acme", "Member", "https://app/invitations?key=k", nil)
	require.NoError(t, err)
	assert.Equal(t, "Invitation to join Acme", msg.Subject)
	assert.Contains(t, msg.Body, "join Acme as Member")
	assert.NotContains(t, msg.Body, "expires")

	at := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	msg, err = Invitation("bob@x.com", "Acme", "Admin", "u", &at)
	require.NoError(t, err)
	assert.Contains(t, msg.Body, "expires on Wed, 02 Jan 2030 03:04:05 UTC")
}

func TestInstrumentedSender(t *testing.T) {
	reg := metrics.New()
	next := &recordingSender{}
	s := InstrumentedSender{Next: next, Metrics: reg}
	require.NoError(t, s.Send(context.Background(), Message{Kind: KindInvitation}))
	next.err = errors.New("boom")
	require.Error(t, s.Send(context.Background(), Message{Kind: KindInvitation}))
	assert.Len(t, next.sent(), 2)
}

func TestAsyncQueue(t *testing.T) {
	sender := &recordingSender{}
	q := NewAsyncQueue(sender)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, q.Enqueue(ctx, Message{Kind: KindPasswordReset, To: []string{"a@x.com"}}))
	cancel()
	require.NoError(t, q.Close())
	sent := sender.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "a@x.com", sent[0].To[0])
}

type fakeWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { w.closed = true; return nil }

func TestKafkaQueue(t *testing.T) {
	assert.Nil(t, NewKafkaQueue(nil, "topic"))
	assert.Nil(t, NewKafkaQueue([]string{"b:9092"}, ""))

	w := &fakeWriter{}
	q := &KafkaQueue{writer: w}
	require.NoError(t, q.Enqueue(context.Background(), Message{Kind: KindInvitation, To: []string{"a@x.com"}, Subject: "s"}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "invitation", string(w.msgs[0].Key))

	var got Message
	require.NoError(t, sonic.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, "s", got.Subject)
	require.NoError(t, q.Close())
	assert.True(t, w.closed)
}

// fakeReader serves queued messages, then blocks until ctx is cancelled.
type fakeReader struct {
	msgs   []kafka.Message
	cancel context.CancelFunc
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) Close() error { return nil }

func TestConsume(t *testing.T) {
	good, err := sonic.Marshal(Message{Kind: KindPasswordReset, To: []string{"a@x.com"}})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	reader := &fakeReader{
		msgs:   []kafka.Message{{Value: []byte("{not json")}, {Value: good, Offset: 1}},
		cancel: cancel,
	}
	sender := &recordingSender{}
	require.NoError(t, Consume(ctx, reader, sender))
	sent := sender.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, KindPasswordReset, sent[0].Kind)
}

func TestAPISender(t *testing.T) {
	var body map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = sonic.ConfigDefault.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewAPISender(srv.URL, "secret", "no-reply@x.com")
	require.NoError(t, s.Send(context.Background(), Message{Kind: KindInvitation, To: []string{"a@x.com"}, Subject: "hi", Body: "b"}))
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "no-reply@x.com", body["from"])
	assert.Equal(t, "invitation", body["tag"])

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer failing.Close()
	err := NewAPISender(failing.URL, "", "f").Send(context.Background(), Message{To: []string{"a@x.com"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestSMTPSender(t *testing.T) {
	var gotAddr string
	var gotMsg []byte
	s := NewSMTPSender("smtp.x.com", 587, "no-reply@x.com", "user", "pass")
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotMsg = msg
		if a == nil {
			t.Error("expected PLAIN auth when a username is set")
		}
		return nil
	}
	require.NoError(t, s.Send(context.Background(), Message{To: []string{"a@x.com"}, Subject: "Hi", Body: "line1\nline2"}))
	assert.Equal(t, "smtp.x.com:587", gotAddr)
	assert.True(t, strings.HasPrefix(string(gotMsg), "From: no-reply@x.com\r\n"))
	assert.Contains(t, string(gotMsg), "line1\r\nline2")

	require.Error(t, NewSMTPSender("", 587, "f", "", "").Validate())
	require.Error(t, s.Send(context.Background(), Message{}))
}
