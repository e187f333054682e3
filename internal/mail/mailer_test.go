package mail

import (
	"bytes"
	"context"
	"testing"

	"club-treasury/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessageHeaders(t *testing.T) {
	m := newMessage(Message{
		From:    "tresorerie@club.example",
		To:      "jean@example.org",
		ReplyTo: "bureau@club.example",
		Subject: "Outstanding balance reminder",
		Body:    "Hello Jean",
	})

	assert.Equal(t, []string{"jean@example.org"}, m.GetHeader("To"))
	assert.Equal(t, []string{"bureau@club.example"}, m.GetHeader("Reply-To"))

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Hello Jean")
}

func TestSend_CancelledContext(t *testing.T) {
	s := NewSMTPSender(config.MailConfig{Host: "localhost", Port: 2525})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Send(ctx, Message{To: "a@b.fr"}), context.Canceled)
}
