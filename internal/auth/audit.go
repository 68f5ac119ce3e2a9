// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GridHive Contributors

package auth

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

// Topics for the outbound publish sink.
const (
	TopicAudit        = "gridhive.audit"
	TopicNotification = "gridhive.communication"
)

// AuditEvent names an auditable operation.
type AuditEvent string

// Audit events emitted by the services.
const (
	AuditSignUp         AuditEvent = "SIGN_UP"
	AuditVerifyPassword AuditEvent = "VERIFY_PASSWORD"
	AuditResetPassword  AuditEvent = "RESET_PASSWORD"
	AuditGenerateToken  AuditEvent = "GENERATE_TOKEN"
	AuditLogOut         AuditEvent = "LOG_OUT"
	AuditGenerateOtp    AuditEvent = "GENERATE_OTP"
	AuditVerifyOtp      AuditEvent = "VERIFY_OTP"
)

// AuditMessage is the audit record published for every operation
// outcome, success or failure.
type AuditMessage struct {
	EventID   string            `json:"eventId"`
	Event     AuditEvent        `json:"event"`
	UserID    string            `json:"userId,omitempty"`
	Success   bool              `json:"success"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NotificationMessage asks the communication service to deliver a
// message to a user.
type NotificationMessage struct {
	Type     string            `json:"type"`
	To       string            `json:"to"`
	UserID   string            `json:"userId,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Publisher is the fire-and-forget outbound sink. Publish must never
// block the caller and must never surface delivery failures to it.
type Publisher interface {
	Publish(topic string, message any)
}

// NopPublisher discards everything. Useful in tests.
type NopPublisher struct{}

// Publish discards the message.
func (NopPublisher) Publish(string, any) {}

// newAuditMessage stamps an audit record with a fresh event ID.
func newAuditMessage(event AuditEvent, userID string, success bool, metadata map[string]string) AuditMessage {
	return AuditMessage{
		EventID:   ulid.Make().String(),
		Event:     event,
		UserID:    userID,
		Success:   success,
		Metadata:  metadata,
		Timestamp: time.Now(),
	}
}

type envelope struct {
	topic   string
	message any
}

// Dispatcher is a bounded asynchronous Publisher. Messages are handed
// to a single delivery goroutine; when the buffer is full they are
// dropped and counted rather than blocking the request path.
type Dispatcher struct {
	logger    *slog.Logger
	ch        chan envelope
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closeOnce sync.Once
}

// NewDispatcher creates a Dispatcher delivering to the service log.
// Deployments that route audit trails to a broker wrap their client in
// a Publisher and skip this type.
func NewDispatcher(logger *slog.Logger, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	d := &Dispatcher{
		logger: logger,
		ch:     make(chan envelope, buffer),
		done:   make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case env := <-d.ch:
			d.deliver(env)
		case <-d.done:
			// Drain what was accepted before Close.
			for {
				select {
				case env := <-d.ch:
					d.deliver(env)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(env envelope) {
	d.logger.Info("publish", "topic", env.topic, "message", env.message)
}

// Publish enqueues a message without blocking. Messages published after
// Close, or while the buffer is full, are dropped.
func (d *Dispatcher) Publish(topic string, message any) {
	select {
	case <-d.done:
		d.dropped.Add(1)
		return
	default:
	}
	select {
	case d.ch <- envelope{topic: topic, message: message}:
	default:
		d.dropped.Add(1)
	}
}

// Dropped returns how many messages were discarded.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Close stops the delivery goroutine after draining accepted messages.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.done)
	})
	d.wg.Wait()
}
