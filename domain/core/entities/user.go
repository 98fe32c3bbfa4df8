package entities

import (
	"net/mail"
	"strings"
	"time"

	"killrvideo/domain/core/valueobjects"
	pkgerrors "killrvideo/pkg/errors"

	"github.com/google/uuid"
)

// User is a registered account. The profile is keyed by id and the
// credential by email; both carry the same user id.
type User struct {
	id        uuid.UUID
	firstName string
	lastName  string
	email     string
	password  string
	createdAt time.Time
}

// UserParams carries the caller-supplied fields of a new user. A zero ID or
// CreatedAt is filled in by NewUser.
type UserParams struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Email     string
	Password  string
	CreatedAt time.Time
}

// NewUser creates a new user with validation
func NewUser(p UserParams) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(p.Email))
	if email == "" {
		return nil, pkgerrors.NewValidationError("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, pkgerrors.NewValidationError("email must be a valid address")
	}
	if strings.TrimSpace(p.FirstName) == "" && strings.TrimSpace(p.LastName) == "" {
		return nil, pkgerrors.NewValidationError("a first or last name is required")
	}
	if p.Password == "" {
		return nil, pkgerrors.NewValidationError("password is required")
	}

	id := p.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return &User{
		id:        id,
		firstName: strings.TrimSpace(p.FirstName),
		lastName:  strings.TrimSpace(p.LastName),
		email:     email,
		password:  p.Password,
		createdAt: valueobjects.Timestamp(createdAt),
	}, nil
}

// ReconstructUser rebuilds a user from stored fields without validation.
// The password is not part of the profile and is left empty.
func ReconstructUser(id uuid.UUID, firstName, lastName, email string, createdAt time.Time) *User {
	return &User{
		id:        id,
		firstName: firstName,
		lastName:  lastName,
		email:     email,
		createdAt: createdAt,
	}
}

func (u *User) ID() uuid.UUID        { return u.id }
func (u *User) FirstName() string    { return u.firstName }
func (u *User) LastName() string     { return u.lastName }
func (u *User) Email() string        { return u.email }
func (u *User) Password() string     { return u.password }
func (u *User) CreatedAt() time.Time { return u.createdAt }

// Credential is the email-keyed lookup record.
type Credential struct {
	Email    string
	Password string
	UserID   uuid.UUID
}
