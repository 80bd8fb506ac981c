package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/harvester/internal/common"
)

type capturedSend struct {
	addr  string
	auth  smtp.Auth
	email *email.Email
}

func newCapturingService(config common.EmailConfig, results ...error) (*Service, *[]capturedSend) {
	svc := NewService(config, arbor.NewLogger())
	sent := &[]capturedSend{}
	svc.send = func(addr string, auth smtp.Auth, mail *email.Email) error {
		*sent = append(*sent, capturedSend{addr: addr, auth: auth, email: mail})
		if len(results) >= len(*sent) {
			return results[len(*sent)-1]
		}
		return nil
	}
	return svc, sent
}

func enabledConfig() common.EmailConfig {
	return common.EmailConfig{
		Enabled:  true,
		Server:   "smtp.example.com",
		Port:     2525,
		Username: "ops@example.com",
		Password: "secret",
		From:     "ops@example.com",
		To:       []string{"oncall@example.com"},
	}
}

func TestNotify_DisabledIsNoop(t *testing.T) {
	svc, sent := newCapturingService(common.EmailConfig{Server: "smtp.example.com"})
	require.NoError(t, svc.Notify(context.Background(), "subject", "message"))
	assert.Empty(t, *sent)
	assert.False(t, svc.IsConfigured())
}

func TestNotify_SendsPlainText(t *testing.T) {
	svc, sent := newCapturingService(enabledConfig())

	require.NoError(t, svc.Notify(context.Background(), "Harvester alert", "failure rate 41.7%"))
	require.Len(t, *sent, 1)

	got := (*sent)[0]
	assert.Equal(t, "smtp.example.com:2525", got.addr)
	assert.NotNil(t, got.auth)
	assert.Equal(t, "Harvester <ops@example.com>", got.email.From)
	assert.Equal(t, []string{"oncall@example.com"}, got.email.To)
	assert.Equal(t, "Harvester alert", got.email.Subject)
	assert.Equal(t, "failure rate 41.7%\n", string(got.email.Text))
}

func TestNotify_RetriesWithoutAuth(t *testing.T) {
	svc, sent := newCapturingService(enabledConfig(), errors.New("smtp: server doesn't support AUTH"), nil)

	require.NoError(t, svc.Notify(context.Background(), "s", "m"))
	require.Len(t, *sent, 2)
	assert.Nil(t, (*sent)[1].auth)
}

func TestNotify_DeliveryFailure(t *testing.T) {
	svc, _ := newCapturingService(enabledConfig(), errors.New("connection refused"))
	assert.Error(t, svc.Notify(context.Background(), "s", "m"))
}

func TestSendReport_Attachments(t *testing.T) {
	svc, sent := newCapturingService(enabledConfig())

	err := svc.SendReport(context.Background(), "Insights", "<h1>Report</h1>", "Report", []Attachment{
		{Filename: "insights.json", ContentType: "application/json", Content: []byte(`{}`)},
		{Filename: "insights.md", Content: []byte("# Report")},
	})
	require.NoError(t, err)
	require.Len(t, *sent, 1)

	mail := (*sent)[0].email
	assert.Equal(t, "<h1>Report</h1>", string(mail.HTML))
	require.Len(t, mail.Attachments, 2)
	assert.Equal(t, "insights.json", mail.Attachments[0].Filename)
}

func TestSendReport_NotConfigured(t *testing.T) {
	svc, _ := newCapturingService(common.EmailConfig{})
	assert.Error(t, svc.SendReport(context.Background(), "s", "h", "t", nil))
}
