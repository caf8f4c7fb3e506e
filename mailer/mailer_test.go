package mailer

import (
	"bytes"
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledOnlyLogs(t *testing.T) {
	var out bytes.Buffer
	m := New(Config{}, zerolog.New(&out))
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called when disabled")
		return nil
	}

	require.NoError(t, m.SendPasswordReset(context.Background(), "a@example.com", "tok", "http://localhost:3000"))
	assert.Contains(t, out.String(), "email disabled")
	assert.Contains(t, out.String(), "http://localhost:3000/reset-password/tok")
}

func TestEnabledSends(t *testing.T) {
	m := New(Config{Enabled: true, Host: "smtp.example.com", User: "shop@example.com", Password: "pw"}, zerolog.Nop())

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	require.NoError(t, m.SendPasswordReset(context.Background(), "a@example.com", "tok", "https://shop.example.com"))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "shop@example.com", gotFrom)
	assert.Equal(t, []string{"a@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Password Reset Request\r\n")
	assert.Contains(t, string(gotMsg), "https://shop.example.com/reset-password/tok")
}

func TestSendError(t *testing.T) {
	m := New(Config{Enabled: true, Host: "smtp.example.com", User: "u"}, zerolog.Nop())
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}
	assert.ErrorContains(t, m.Send(context.Background(), "a@example.com", "s", "b"), "connection refused")
}
