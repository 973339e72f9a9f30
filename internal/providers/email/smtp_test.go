package email

import (
	"context"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderChargeCreated(t *testing.T) {
	subject, body, err := Render(TemplateChargeCreated, map[string]any{
		"customer_name": "Maria",
		"amount":        "R$ 99,90",
		"due_date":      "2024-02-10",
		"invoice_url":   "https://pay.example/i/1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Nova cobrança disponível", subject)
	assert.Contains(t, body, "Maria")
	assert.Contains(t, body, "R$ 99,90")
	assert.Contains(t, body, "https://pay.example/i/1")
}

func TestSMTPSendBuildsMessage(t *testing.T) {
	var gotAddr string
	var gotTo []string
	var gotMsg []byte

	p := NewSMTP(Config{Host: "smtp.example", Port: 2525, From: "billing@example.com"})
	p.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, msg
		assert.Nil(t, a)
		return nil
	}

	err := p.SendTemplate(context.Background(), []string{"maria@example.com"}, TemplateChargePaid, map[string]any{
		"customer_name": "Maria",
		"amount":        "R$ 10,00",
		"due_date":      "2024-03-01",
	})
	require.NoError(t, err)
	assert.Equal(t, "smtp.example:2525", gotAddr)
	assert.Equal(t, []string{"maria@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Pagamento confirmado")
}

func TestSMTPSendRequiresRecipient(t *testing.T) {
	err := NewSMTP(Config{Host: "smtp.example", Port: 25}).Send(context.Background(), nil, "x", "y")
	assert.ErrorIs(t, err, ErrNoRecipients)
}
