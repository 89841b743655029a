package notification

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/wneessen/go-mail"
)

func TestSMTPSender_Message(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "prijave@farm.rs"})
	m, err := s.message(Message{
		ID:      "abc-123",
		To:      "stete@risk.co.rs",
		Subject: "Prijava štete - Farma - Lohmann Brown FĆ 1",
		Text:    "telo",
		HTML:    "<p>telo</p>",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if from := m.GetFromString(); len(from) != 1 || !strings.Contains(from[0], "prijave@farm.rs") {
		t.Errorf("expected From to fall back to the username, got %v", from)
	}
	if to := m.GetToString(); len(to) != 1 || !strings.Contains(to[0], "stete@risk.co.rs") {
		t.Errorf("unexpected To %v", to)
	}
	if id := m.GetGenHeader(mail.HeaderMessageID); len(id) != 1 || !strings.Contains(id[0], "abc-123") {
		t.Errorf("unexpected Message-ID %v", id)
	}
	if parts := m.GetParts(); len(parts) != 2 {
		t.Errorf("expected text and html parts, got %d", len(parts))
	}
}

func TestSMTPSender_InvalidAddresses(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 587})
	if _, err := s.message(Message{To: "stete@risk.co.rs"}); err == nil {
		t.Error("expected error without a sender address")
	}
	s = NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 587, From: "prijave@farm.rs"})
	if _, err := s.message(Message{To: "not an address"}); err == nil {
		t.Error("expected error for an invalid recipient")
	}
}

func TestSMTPSender_Unreachable(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: 1, From: "prijave@farm.rs"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.SendEmail(ctx, Message{To: "stete@risk.co.rs", Subject: "s", Text: "t"}); err == nil {
		t.Error("expected dial error")
	}
}
