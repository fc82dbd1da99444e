package testutil

import (
	"context"
	"sync"

	"habitloop/internal/billing"
)

type SentMail struct {
	To      string
	Subject string
	Invoice *billing.InvoiceSnapshot
}

// FakeMailer implements services.IMailService and keeps what it was asked to send.
type FakeMailer struct {
	mu   sync.Mutex
	Sent []SentMail
	Err  error
}

func NewFakeMailer() *FakeMailer {
	return &FakeMailer{}
}

func (m *FakeMailer) SendMailToNotifyUser(_ context.Context, to, subject, _, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, SentMail{To: to, Subject: subject})
	return nil
}

func (m *FakeMailer) SendPaymentFailedNotice(_ context.Context, to string, invoice billing.InvoiceSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, SentMail{To: to, Subject: "payment failed", Invoice: &invoice})
	return nil
}
