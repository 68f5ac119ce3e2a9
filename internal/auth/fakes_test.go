// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GridHive Contributors

package auth_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gridhive/authd/internal/auth"
)

// fakeUserRepo is an in-memory auth.UserRepository.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*auth.User // keyed by user ID
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*auth.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return auth.ErrAlreadyRegistered
		}
	}
	cp := *user
	r.users[user.UserID] = &cp
	return nil
}

func (r *fakeUserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (r *fakeUserRepo) GetByUserID(_ context.Context, userID string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, auth.ErrNotFound
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return auth.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

// fakeTokenRepo is an in-memory auth.TokenRepository.
type fakeTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*auth.Token // keyed by token ID
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: make(map[string]*auth.Token)}
}

func (r *fakeTokenRepo) Create(_ context.Context, token *auth.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *token
	r.tokens[token.TokenID] = &cp
	return nil
}

func (r *fakeTokenRepo) GetByValue(_ context.Context, value string) (*auth.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tok := range r.tokens {
		if tok.Value == value {
			cp := *tok
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (r *fakeTokenRepo) GetActiveByValue(_ context.Context, value string, now time.Time) (*auth.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tok := range r.tokens {
		if tok.Value == value && now.Before(tok.ExpiredAt) {
			cp := *tok
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (r *fakeTokenRepo) GetActiveByBoard(_ context.Context, boardID string, now time.Time) (*auth.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tok := range r.tokens {
		if tok.BoardID == boardID && now.Before(tok.ExpiredAt) {
			cp := *tok
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (r *fakeTokenRepo) UpdateExpiry(_ context.Context, tokenID string, expiredAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tok, ok := r.tokens[tokenID]
	if !ok {
		return auth.ErrNotFound
	}
	tok.ExpiredAt = expiredAt
	return nil
}

func (r *fakeTokenRepo) DeleteByBoard(_ context.Context, boardID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, tok := range r.tokens {
		if tok.BoardID == boardID {
			delete(r.tokens, id)
		}
	}
	return nil
}

// fakeOtpRepo is an in-memory auth.OtpRepository.
type fakeOtpRepo struct {
	mu   sync.Mutex
	otps map[string]*auth.Otp // keyed by otp ID
}

func newFakeOtpRepo() *fakeOtpRepo {
	return &fakeOtpRepo{otps: make(map[string]*auth.Otp)}
}

func (r *fakeOtpRepo) Create(_ context.Context, otp *auth.Otp) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *otp
	r.otps[otp.OtpID] = &cp
	return nil
}

func (r *fakeOtpRepo) GetGeneratedByEmail(_ context.Context, email string) (*auth.Otp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.otps {
		if o.Email == email && o.State == auth.OtpStateGenerated {
			cp := *o
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (r *fakeOtpRepo) GetByIDAndState(_ context.Context, otpID string, state auth.OtpState) (*auth.Otp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.otps[otpID]; ok && o.State == state {
		cp := *o
		return &cp, nil
	}
	return nil, auth.ErrNotFound
}

func (r *fakeOtpRepo) CountByEmailCreatedAfter(_ context.Context, email string, after time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, o := range r.otps {
		if o.Email == email && o.CreatedAt.After(after) {
			count++
		}
	}
	return count, nil
}

func (r *fakeOtpRepo) TransitionState(_ context.Context, otpID string, from, to auth.OtpState) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.otps[otpID]
	if !ok || o.State != from {
		return false, nil
	}
	o.State = to
	return true, nil
}

func (r *fakeOtpRepo) ExpireActive(_ context.Context, email string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, o := range r.otps {
		if o.Email == email && o.State == auth.OtpStateGenerated {
			o.State = auth.OtpStateExpired
			n++
		}
	}
	return n, nil
}

func (r *fakeOtpRepo) ListGeneratedBefore(_ context.Context, threshold time.Time) ([]*auth.Otp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*auth.Otp
	for _, o := range r.otps {
		if o.State == auth.OtpStateGenerated && o.CreatedAt.Before(threshold) {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

// backdate shifts a stored passcode's creation time, simulating the
// passage of the rate-limit window.
func (r *fakeOtpRepo) backdate(otpID string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.otps[otpID]; ok {
		o.CreatedAt = o.CreatedAt.Add(-d)
	}
}

// capturingPublisher records everything published.
type capturingPublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
}

type publishedMessage struct {
	topic   string
	message any
}

func (p *capturingPublisher) Publish(topic string, message any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, publishedMessage{topic: topic, message: message})
}

// auditEvents returns the audit events published in order.
func (p *capturingPublisher) auditEvents() []auth.AuditMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []auth.AuditMessage
	for _, m := range p.messages {
		if m.topic != auth.TopicAudit {
			continue
		}
		if msg, ok := m.message.(auth.AuditMessage); ok {
			out = append(out, msg)
		}
	}
	return out
}

// notifications returns the communication messages published in order.
func (p *capturingPublisher) notifications() []auth.NotificationMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []auth.NotificationMessage
	for _, m := range p.messages {
		if m.topic != auth.TopicNotification {
			continue
		}
		if msg, ok := m.message.(auth.NotificationMessage); ok {
			out = append(out, msg)
		}
	}
	return out
}

// fakeGateway is a canned auth.AuthorizationGateway.
type fakeGateway struct {
	accountValid bool
	boardValid   bool
	err          error
}

func (g *fakeGateway) IsValidAccountAndRole(context.Context, string, string, string) (bool, error) {
	return g.accountValid, g.err
}

func (g *fakeGateway) IsValidBoard(context.Context, string, string) (bool, error) {
	return g.boardValid, g.err
}

// fakeHasher is a deterministic auth.PasswordHasher for service tests.
// The real argon2id implementation is covered by its own tests.
type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", auth.ErrEmptyPassword
	}
	return "hashed:" + password, nil
}

func (fakeHasher) Verify(password, hash string) (bool, error) {
	return hash == "hashed:"+password, nil
}

// seqIDGenerator hands out predictable identifiers.
type seqIDGenerator struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDGenerator) Generate(kind auth.IDKind) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	id := fmt.Sprintf("%s%d", strings.ToUpper(kind.String()), g.n)
	return id, nil
}
