// Package auth implements the sign-in collaborator: credential checks,
// jwt session tokens and an observable auth state.
package auth

import (
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/friendlychat-dev/friendlychat/internal/domain"
	internal_errors "github.com/friendlychat-dev/friendlychat/internal/errors"
)

var errBadCredentials = &internal_errors.ErrorWithStatusCode{Message: "Wrong name or password", StatusCode: 401}

// Credential is one configured user; PasswordHash is bcrypt.
type Credential struct {
	Name         string
	PasswordHash string
	AvatarURL    string
	Admin        bool
}

type Service struct {
	jwt   JwtService
	creds map[string]Credential

	mu        sync.Mutex
	observers []func(*domain.User)
}

func New(jwt JwtService, creds []Credential) *Service {
	byName := make(map[string]Credential, len(creds))
	for _, c := range creds {
		byName[c.Name] = c
	}
	return &Service{jwt: jwt, creds: byName}
}

// Login verifies the credentials and returns a session token.
func (s *Service) Login(name, password string) (string, *domain.User, error) {
	cred, ok := s.creds[name]
	if !ok {
		// burn comparable time so missing users are not distinguishable
		bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000000000000000000000000000000000"), []byte(password))
		return "", nil, errBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return "", nil, errBadCredentials
	}

	user := &domain.User{
		Id:        uuid.NewSHA1(uuid.NameSpaceURL, []byte("friendlychat:"+cred.Name)).String(),
		Name:      cred.Name,
		AvatarURL: cred.AvatarURL,
		Admin:     cred.Admin,
	}
	token, err := s.jwt.NewToken(*user)
	if err != nil {
		return "", nil, err
	}

	s.notify(user)
	return token, user, nil
}

// UserFromTokenString validates a session token and returns its user.
func (s *Service) UserFromTokenString(tokenStr string) (*domain.User, error) {
	token, err := s.jwt.DecodeToken(tokenStr)
	if err != nil {
		return nil, err
	}
	return UserFromToken(token)
}

// OnAuthStateChange registers a callback invoked with the user on
// sign-in and nil on sign-out.
func (s *Service) OnAuthStateChange(cb func(*domain.User)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, cb)
}

// Logout only flips the observable state; tokens expire on their own.
func (s *Service) Logout() {
	s.notify(nil)
}

func (s *Service) notify(user *domain.User) {
	s.mu.Lock()
	observers := make([]func(*domain.User), len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()
	for _, cb := range observers {
		cb(user)
	}
}

// Session is the per-connection auth state handed to the feed view.
type Session struct {
	user *domain.User
}

func NewSession(user *domain.User) *Session {
	return &Session{user: user}
}

func (s *Session) SignedIn() bool {
	return s != nil && s.user != nil
}

func (s *Session) DisplayName() string {
	if !s.SignedIn() {
		return ""
	}
	return s.user.Name
}

func (s *Session) AvatarURL() (string, bool) {
	if !s.SignedIn() || s.user.AvatarURL == "" {
		return "", false
	}
	return s.user.AvatarURL, true
}

func (s *Session) User() *domain.User {
	if s == nil {
		return nil
	}
	return s.user
}
