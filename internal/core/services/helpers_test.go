package services_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakePresence struct {
	mu      sync.Mutex
	touched []string
	online  []string
}

func (f *fakePresence) Touch(ctx context.Context, userID string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, userID)
	return nil
}

func (f *fakePresence) Online(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online, nil
}

type fakeBus struct {
	mu        sync.Mutex
	published [][]byte
	broadcast map[string][][]byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{broadcast: map[string][][]byte{}}
}

func (f *fakeBus) Publish(ctx context.Context, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, payload)
	return nil
}

func (f *fakeBus) Subscribe(ctx context.Context, group string, handler func(ctx context.Context, eventID string, data []byte) error) error {
	return nil
}

func (f *fakeBus) Acknowledge(ctx context.Context, group, eventID string) error { return nil }

func (f *fakeBus) Delete(ctx context.Context, eventID string) error { return nil }

func (f *fakeBus) Broadcast(ctx context.Context, userID string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcast[userID] = append(f.broadcast[userID], data)
	return nil
}

type sentMail struct {
	Kind    string
	To      string
	Name    string
	Payload string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (f *fakeMailer) SendPassword(ctx context.Context, to, name, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{Kind: "password", To: to, Name: name, Payload: password})
	return nil
}

func (f *fakeMailer) SendAccountReminder(ctx context.Context, to, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{Kind: "reminder", To: to, Name: name})
	return nil
}

func (f *fakeMailer) SendContactRelay(ctx context.Context, fromName, fromEmail, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{Kind: "relay", To: fromEmail, Name: fromName, Payload: body})
	return nil
}
