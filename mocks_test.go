package accounts_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/converse-im/go-accounts"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

func notFoundErr(msg string) error {
	return goerrors.New(msg, goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound)
}

// memCredentialStore is an in-memory CredentialStore with the same
// version-guard semantics as the bun-backed repository.
type memCredentialStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*accounts.User

	// savePairErrs lets tests inject stale-record races; each SavePair
	// call consumes one entry until the slice is drained.
	savePairErrs []error
}

func newMemCredentialStore() *memCredentialStore {
	return &memCredentialStore{
		users: map[uuid.UUID]*accounts.User{},
	}
}

func cloneUser(u *accounts.User) *accounts.User {
	if u == nil {
		return nil
	}
	out := *u
	out.IncomingRequests = append([]uuid.UUID{}, u.IncomingRequests...)
	out.OutgoingRequests = append([]uuid.UUID{}, u.OutgoingRequests...)
	out.Friends = append([]uuid.UUID{}, u.Friends...)
	return &out
}

func (s *memCredentialStore) GetByID(_ context.Context, id uuid.UUID) (*accounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, notFoundErr("user not found")
	}
	return cloneUser(user), nil
}

func (s *memCredentialStore) GetByEmail(_ context.Context, email string) (*accounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.Email == email {
			return cloneUser(user), nil
		}
	}
	return nil, notFoundErr("user not found")
}

func (s *memCredentialStore) Create(_ context.Context, record *accounts.User) (*accounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	for _, user := range s.users {
		if user.Email == record.Email {
			return nil, goerrors.New("email already exists", goerrors.CategoryConflict)
		}
	}
	if record.IncomingRequests == nil {
		record.IncomingRequests = []uuid.UUID{}
	}
	if record.OutgoingRequests == nil {
		record.OutgoingRequests = []uuid.UUID{}
	}
	if record.Friends == nil {
		record.Friends = []uuid.UUID{}
	}

	s.users[record.ID] = cloneUser(record)
	return cloneUser(record), nil
}

func (s *memCredentialStore) SetVerified(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return notFoundErr("user not found")
	}
	user.Verified = true
	return nil
}

func (s *memCredentialStore) SetPasswordHash(_ context.Context, id uuid.UUID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return notFoundErr("user not found")
	}
	user.PasswordHash = passwordHash
	return nil
}

func (s *memCredentialStore) SavePair(_ context.Context, a, b *accounts.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.savePairErrs) > 0 {
		err := s.savePairErrs[0]
		s.savePairErrs = s.savePairErrs[1:]
		if err != nil {
			return err
		}
	}

	for _, record := range []*accounts.User{a, b} {
		stored, ok := s.users[record.ID]
		if !ok {
			return notFoundErr("user not found")
		}
		if stored.Version != record.Version {
			return accounts.ErrStaleRecord
		}
	}

	for _, record := range []*accounts.User{a, b} {
		saved := cloneUser(record)
		saved.Version++
		s.users[record.ID] = saved
		record.Version++
	}
	return nil
}

func (s *memCredentialStore) ListProfiles(_ context.Context, ids []uuid.UUID) ([]*accounts.PublicProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles := make([]*accounts.PublicProfile, 0, len(ids))
	for _, id := range ids {
		if user, ok := s.users[id]; ok {
			profiles = append(profiles, user.PublicProfile())
		}
	}
	return profiles, nil
}

func (s *memCredentialStore) ListProfilesExcept(_ context.Context, exclude uuid.UUID) ([]*accounts.PublicProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles := []*accounts.PublicProfile{}
	for id, user := range s.users {
		if id != exclude {
			profiles = append(profiles, user.PublicProfile())
		}
	}
	return profiles, nil
}

var _ accounts.CredentialStore = (*memCredentialStore)(nil)

// memTokenStore is an in-memory TokenStore enforcing one live token per
// account and expiry on read.
type memTokenStore struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]*accounts.Token
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{
		tokens: map[uuid.UUID]*accounts.Token{},
	}
}

func (s *memTokenStore) GetLiveByCode(_ context.Context, code string) (*accounts.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, token := range s.tokens {
		if token.Code == code && token.Live(now) {
			out := *token
			return &out, nil
		}
	}
	return nil, notFoundErr("token not found")
}

func (s *memTokenStore) GetLiveByUser(_ context.Context, userID uuid.UUID) (*accounts.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, token := range s.tokens {
		if token.UserID == userID && token.Live(now) {
			out := *token
			return &out, nil
		}
	}
	return nil, notFoundErr("token not found")
}

func (s *memTokenStore) Put(_ context.Context, candidate *accounts.Token) (*accounts.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, token := range s.tokens {
		if token.UserID != candidate.UserID {
			continue
		}
		if token.Live(now) {
			out := *token
			return &out, nil
		}
		delete(s.tokens, id)
	}

	if candidate.ID == uuid.Nil {
		candidate.ID = uuid.New()
	}
	if candidate.CreatedAt == nil {
		created := now
		candidate.CreatedAt = &created
	}
	if candidate.ExpiresAt.IsZero() {
		candidate.ExpiresAt = candidate.CreatedAt.Add(accounts.TokenTTL)
	}

	stored := *candidate
	s.tokens[candidate.ID] = &stored
	out := stored
	return &out, nil
}

func (s *memTokenStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[id]; !ok {
		return notFoundErr("token not found")
	}
	delete(s.tokens, id)
	return nil
}

// expire force-expires the account's live token.
func (s *memTokenStore) expire(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, token := range s.tokens {
		if token.UserID == userID {
			token.ExpiresAt = time.Now().Add(-time.Minute)
		}
	}
}

var _ accounts.TokenStore = (*memTokenStore)(nil)

// sentMail records one delivery request handed to the mailer.
type sentMail struct {
	To   string
	Kind accounts.MailKind
	Code string
	Name string
}

// recordingMailer captures deliveries and optionally fails them.
type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *recordingMailer) Send(_ context.Context, toAddress string, kind accounts.MailKind, code, displayName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}

	m.sent = append(m.sent, sentMail{To: toAddress, Kind: kind, Code: code, Name: displayName})
	return nil
}

func (m *recordingMailer) deliveries() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail{}, m.sent...)
}

var _ accounts.Mailer = (*recordingMailer)(nil)

// stubImageStore returns a canned reference or a canned error.
type stubImageStore struct {
	err error
}

func (s *stubImageStore) Store(_ context.Context, filename string, data []byte) (*accounts.ImageRef, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &accounts.ImageRef{
		URL:       "https://img.example.com/" + filename,
		PublicID:  "avatars/" + filename,
		AssetID:   uuid.NewString(),
		Signature: fmt.Sprintf("sig-%d", len(data)),
	}, nil
}

var _ accounts.ImageStore = (*stubImageStore)(nil)

// plainHasher avoids bcrypt cost in tests that don't exercise hashing.
type plainHasher struct{}

func (plainHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", accounts.ErrNoEmptyString
	}
	return "hashed:" + password, nil
}

func (plainHasher) ComparePasswordAndHash(password, hash string) error {
	if strings.TrimPrefix(hash, "hashed:") != password {
		return accounts.ErrMismatchedHashAndPassword
	}
	return nil
}

var _ accounts.PasswordAuthenticator = plainHasher{}

func newTestConfig() accounts.SessionConfig {
	return accounts.SessionConfig{
		SigningKey:      "test-signing-key",
		TokenExpiration: 1,
		Issuer:          "accounts-test",
		Audience:        []string{"chat-app"},
	}
}
