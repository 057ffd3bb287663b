package similarity

import (
	"errors"
	"fmt"
)

var (
	ErrNetwork   = errors.New("similarity: network failure")
	ErrStatus    = errors.New("similarity: unexpected status")
	ErrMalformed = errors.New("similarity: malformed response")
)

type Kind int

const (
	KindNetwork Kind = iota
	KindStatus
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindStatus:
		return "status"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// MatchError is every failure Client.Match returns.
type MatchError struct {
	Kind       Kind
	StatusCode int // set for KindStatus
	Err        error
}

func (e *MatchError) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("similarity: status %d: %v", e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("similarity: %s: %v", e.Kind, e.Err)
	}
}

func (e *MatchError) Unwrap() error { return e.Err }

func (e *MatchError) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrStatus:
		return e.Kind == KindStatus
	case ErrMalformed:
		return e.Kind == KindMalformed
	}
	return false
}
