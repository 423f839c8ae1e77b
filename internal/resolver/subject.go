package resolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// SubjectKind discriminates overwrite subjects. Role sorts before member.
type SubjectKind uint8

const (
	// SubjectRole targets every holder of a role.
	SubjectRole SubjectKind = iota
	// SubjectMember targets a single guild member.
	SubjectMember
)

// ErrUnknownSubjectKind is returned by ParseSubjectKind for unknown names.
var ErrUnknownSubjectKind = errors.New("unknown overwrite subject kind")

// String returns the stored name of the kind.
func (k SubjectKind) String() string {
	switch k {
	case SubjectRole:
		return "role"
	case SubjectMember:
		return "member"
	default:
		return fmt.Sprintf("SubjectKind(%d)", uint8(k))
	}
}

// ParseSubjectKind parses "role" or "member".
func ParseSubjectKind(s string) (SubjectKind, error) {
	switch strings.ToLower(s) {
	case "role":
		return SubjectRole, nil
	case "member", "user":
		return SubjectMember, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownSubjectKind, s)
	}
}

// Subject identifies who an overwrite applies to.
type Subject struct {
	Kind SubjectKind
	ID   uuid.UUID
}

// RoleSubject returns the subject for a role.
func RoleSubject(id uuid.UUID) Subject { return Subject{Kind: SubjectRole, ID: id} }

// MemberSubject returns the subject for a member.
func MemberSubject(id uuid.UUID) Subject { return Subject{Kind: SubjectMember, ID: id} }

// Less orders subjects: roles before members, then by id.
func (s Subject) Less(o Subject) bool {
	if s.Kind != o.Kind {
		return s.Kind < o.Kind
	}

	return s.ID.String() < o.ID.String()
}

func (s Subject) String() string { return s.Kind.String() + ":" + s.ID.String() }
