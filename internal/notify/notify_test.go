package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/facility-requests/internal/config"
	"github.com/spec-kit/facility-requests/internal/domain"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func sampleRequest() domain.FacilityRequest {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return domain.FacilityRequest{
		ID:          "5b0f7f4e-3a53-4c4c-9d3a-1f5e3b2a9c11",
		UserID:      "owner-1",
		Location:    "Bldg 2, Rm 5",
		Description: "Broken AC <urgent>",
		Severity:    domain.SeverityCritical,
		Status:      domain.RequestStatusInProgress,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestNotifyCreated(t *testing.T) {
	mailer := &recordingMailer{}
	n := NewNotifier(mailer, "facilities@example.com", "https://facilities.example.com")
	dept := "Finance"
	owner := domain.UserProfile{ID: "owner-1", Name: "Ana", Email: "ana@example.com", Department: &dept}

	require.NoError(t, n.NotifyCreated(context.Background(), sampleRequest(), owner))
	require.Len(t, mailer.sent, 1)

	msg := mailer.sent[0]
	assert.Equal(t, "facilities@example.com", msg.To)
	assert.Equal(t, "New Facility Request - CRITICAL Priority", msg.Subject)
	assert.Contains(t, msg.HTML, "#DC2626")
	assert.Contains(t, msg.HTML, "Bldg 2, Rm 5")
	assert.Contains(t, msg.HTML, "Broken AC &lt;urgent&gt;")
	assert.Contains(t, msg.HTML, "Finance")
	assert.Contains(t, msg.HTML, "https://facilities.example.com/admin/5b0f7f4e-3a53-4c4c-9d3a-1f5e3b2a9c11")
}

func TestNotifyResponded(t *testing.T) {
	mailer := &recordingMailer{}
	n := NewNotifier(mailer, "facilities@example.com", "https://facilities.example.com")
	owner := domain.UserProfile{ID: "owner-1", Name: "Ana", Email: "ana@example.com"}

	require.NoError(t, n.NotifyResponded(context.Background(), sampleRequest(), owner, "Technician dispatched"))
	require.Len(t, mailer.sent, 1)

	msg := mailer.sent[0]
	assert.Equal(t, "ana@example.com", msg.To)
	assert.Equal(t, "Update on Your Facility Request - Bldg 2, Rm 5", msg.Subject)
	assert.Contains(t, msg.HTML, "Technician dispatched")
	assert.Contains(t, msg.HTML, "IN_PROGRESS")
	assert.Contains(t, msg.HTML, "https://facilities.example.com/requests/5b0f7f4e-3a53-4c4c-9d3a-1f5e3b2a9c11")
}

func TestSeverityColorFallback(t *testing.T) {
	assert.Equal(t, "#10B981", severityColor(domain.SeverityLow))
	assert.Equal(t, "#6B7280", severityColor(domain.Severity("UNKNOWN")))
}

func TestGraphMailerSend(t *testing.T) {
	var (
		gotPath string
		gotBody graphSendMail
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m := &GraphMailer{client: srv.Client(), baseURL: srv.URL, sender: "facilities@example.com"}
	err := m.Send(context.Background(), Message{To: "ana@example.com", Subject: "hello", HTML: "<p>hi</p>"})
	require.NoError(t, err)

	assert.Equal(t, "/users/facilities@example.com/sendMail", gotPath)
	assert.Equal(t, "hello", gotBody.Message.Subject)
	assert.Equal(t, "HTML", gotBody.Message.Body.ContentType)
	require.Len(t, gotBody.Message.ToRecipients, 1)
	assert.Equal(t, "ana@example.com", gotBody.Message.ToRecipients[0].EmailAddress.Address)
}

func TestGraphMailerRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"code":"ErrorAccessDenied"}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	m := &GraphMailer{client: srv.Client(), baseURL: srv.URL, sender: "facilities@example.com"}
	err := m.Send(context.Background(), Message{To: "ana@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ErrorAccessDenied")

	assert.ErrorIs(t, m.Send(context.Background(), Message{}), ErrNoRecipient)
}

func TestSMTPEnvelope(t *testing.T) {
	m := NewSMTPMailer(config.SMTPConfig{Host: "localhost", Port: 2525}, "noreply@example.com")

	_, err := m.envelope(Message{})
	assert.ErrorIs(t, err, ErrNoRecipient)

	_, err = m.envelope(Message{To: "not an address"})
	assert.Error(t, err)

	envelope, err := m.envelope(Message{To: "ana@example.com", Subject: "s", HTML: "<p>x</p>"})
	require.NoError(t, err)
	sender, err := envelope.GetSender(false)
	require.NoError(t, err)
	assert.Equal(t, "noreply@example.com", sender)
	recipients, err := envelope.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"ana@example.com"}, recipients)
}

func TestNewMailer(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	m, err := NewMailer(context.Background(), config.NotificationConfig{Transport: config.TransportLog}, logger)
	require.NoError(t, err)
	require.NoError(t, m.Send(context.Background(), Message{To: "a@example.com", Subject: "s"}))
	assert.Equal(t, 1, logs.FilterMessage("email").Len())

	m, err = NewMailer(context.Background(), config.NotificationConfig{Transport: config.TransportNoop}, logger)
	require.NoError(t, err)
	assert.IsType(t, NoopMailer{}, m)

	m, err = NewMailer(context.Background(), config.NotificationConfig{Transport: config.TransportSMTP, SMTP: config.SMTPConfig{Host: "mail"}}, logger)
	require.NoError(t, err)
	assert.IsType(t, &SMTPMailer{}, m)

	m, err = NewMailer(context.Background(), config.NotificationConfig{Transport: config.TransportGraph}, logger)
	require.NoError(t, err)
	assert.IsType(t, &GraphMailer{}, m)

	_, err = NewMailer(context.Background(), config.NotificationConfig{Transport: "pigeon"}, logger)
	assert.Error(t, err)
}
