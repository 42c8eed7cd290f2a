package notify

import (
	"context"
	"errors"
	"mime"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func sampleMessage() Message {
	return Message{
		ID:          "5f0c3c1e-2b1d-4a53-9a8e-8f6b2f1c0d11",
		Type:        "NTH",
		ChannelID:   2780154,
		ChannelName: "GA_SR9",
		Level:       4.25,
		At:          time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		To:          []string{"a@example.com", "b@example.com"},
		Subject:     "Alerte NTH pour GA_SR9",
		Body:        "Le niveau est très haut pour le canal GA_SR9. Valeur actuelle : 4.25",
	}
}

type recordingNotifier struct {
	got []Message
	err error
}

func (r *recordingNotifier) Notify(_ context.Context, msg Message) error {
	r.got = append(r.got, msg)
	return r.err
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	require.NoError(t, n.Notify(context.Background(), sampleMessage()))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "email preview", entry.Message)
	assert.Equal(t, "Alerte NTH pour GA_SR9", entry.ContextMap()["subject"])
	assert.Equal(t, "a@example.com, b@example.com", entry.ContextMap()["to"])
}

func TestMulti_AttemptsAllAndJoinsErrors(t *testing.T) {
	errA := errors.New("a down")
	a := &recordingNotifier{err: errA}
	b := &recordingNotifier{}
	c := &recordingNotifier{err: errors.New("c down")}

	err := Multi{a, b, c}.Notify(context.Background(), sampleMessage())
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.Contains(t, err.Error(), "c down")
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
	assert.Len(t, c.got, 1)

	assert.NoError(t, Multi{b}.Notify(context.Background(), sampleMessage()))
}

func TestSMTPNotifier(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{Host: "mail.local", Port: 587, From: "alerts@example.com"}, zap.NewNop())

	var gotAddr string
	var gotTo []string
	var gotBody string
	n.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotBody = addr, to, string(msg)
		return nil
	}

	require.NoError(t, n.Notify(context.Background(), sampleMessage()))
	assert.Equal(t, "mail.local:587", gotAddr)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, gotTo)
	assert.Contains(t, gotBody, "Subject: Alerte NTH pour GA_SR9\r\n")
	assert.True(t, strings.HasSuffix(gotBody, "Valeur actuelle : 4.25\r\n"))
}

func TestBuildMail_EncodesAccentedSubject(t *testing.T) {
	msg := sampleMessage()
	msg.Subject = "Alerte de débordement pour GA_SR9"

	mail := string(buildMail("alerts@example.com", msg))
	start := strings.Index(mail, "Subject: ") + len("Subject: ")
	header := mail[start : start+strings.Index(mail[start:], "\r\n")]
	assert.True(t, strings.HasPrefix(header, "=?utf-8?q?"), header)

	decoded, err := new(mime.WordDecoder).DecodeHeader(header)
	require.NoError(t, err)
	assert.Equal(t, msg.Subject, decoded)
}

func TestSMTPNotifier_NoRecipients(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{Host: "mail.local", Port: 25}, zap.NewNop())
	called := false
	n.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		called = true
		return nil
	}

	msg := sampleMessage()
	msg.To = []string{}
	assert.NoError(t, n.Notify(context.Background(), msg))
	assert.False(t, called)
}

func TestSMTPNotifier_SendFailure(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{Host: "mail.local", Port: 25}, zap.NewNop())
	n.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("421 try later")
	}
	err := n.Notify(context.Background(), sampleMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "421")
}

func TestRedisStreamNotifier(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	n := NewRedisStreamNotifier(client, "")
	require.NoError(t, n.Notify(context.Background(), sampleMessage()))

	entries, err := client.XRange(context.Background(), DefaultStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	v := entries[0].Values
	assert.Equal(t, "NTH", v["type"])
	assert.Equal(t, "2780154", v["channel_id"])
	assert.Equal(t, "4.25", v["level"])
	assert.Equal(t, "2024-03-01T10:00:00Z", v["at"])
	assert.Equal(t, `["a@example.com","b@example.com"]`, v["to"])
	assert.Equal(t, "Alerte NTH pour GA_SR9", v["subject"])
}

func TestRedisStreamNotifier_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	err := NewRedisStreamNotifier(client, "alerts").Notify(context.Background(), sampleMessage())
	assert.Error(t, err)
}

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type fakePublisher struct {
	topic   string
	qos     byte
	payload []byte
	err     error
}

func (p *fakePublisher) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	p.topic, p.qos, p.payload = topic, qos, payload.([]byte)
	return newFakeToken(p.err)
}

func TestMQTTNotifier(t *testing.T) {
	pub := &fakePublisher{}
	n := NewMQTTNotifier(pub, "plant/alerts/", 1)

	require.NoError(t, n.Notify(context.Background(), sampleMessage()))
	assert.Equal(t, "plant/alerts/2780154/nth", pub.topic)
	assert.Equal(t, byte(1), pub.qos)

	var got Message
	require.NoError(t, json.Unmarshal(pub.payload, &got))
	assert.Equal(t, sampleMessage().Subject, got.Subject)
	assert.Equal(t, sampleMessage().To, got.To)
}

func TestMQTTNotifier_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("not connected")}
	err := NewMQTTNotifier(pub, "", 0).Notify(context.Background(), sampleMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stations/alerts/2780154/nth")
}
