package ecs

import (
	"fmt"
	"time"
)

// Error is the single error type surfaced by every exported operation in
// the ecs core. It carries a stable Code (see the Err* constants below)
// plus whatever context was available when the error was raised.
type Error struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Entity    Entity    `json:"entity,omitempty"`
	TypeID    int       `json:"type_id,omitempty"`
	TypeName  string    `json:"type_name,omitempty"`
	System    string    `json:"system,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details,omitempty"`
}

func (e *Error) Error() string {
	switch {
	case !e.Entity.IsNull() && e.TypeName != "":
		return fmt.Sprintf("[%s] %s (entity: %s, type: %s)", e.Code, e.Message, e.Entity, e.TypeName)
	case !e.Entity.IsNull():
		return fmt.Sprintf("[%s] %s (entity: %s)", e.Code, e.Message, e.Entity)
	case e.TypeName != "":
		return fmt.Sprintf("[%s] %s (type: %s)", e.Code, e.Message, e.TypeName)
	default:
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
}

func (e *Error) String() string {
	return fmt.Sprintf("Error{Code: %s, Message: %s, Entity: %s, Type: %s, Time: %s}",
		e.Code, e.Message, e.Entity, e.TypeName, e.Timestamp.Format(time.RFC3339))
}

// Error codes, one per §7 of the spec.
const (
	ErrStaleHandle      = "STALE_HANDLE"
	ErrNotRegistered    = "NOT_REGISTERED"
	ErrOverflow         = "OVERFLOW"
	ErrMissingComponent = "MISSING_COMPONENT"
	ErrAuthorityConflict = "AUTHORITY_CONFLICT"
	ErrWrongPhase       = "WRONG_PHASE"
	ErrUnsupported      = "UNSUPPORTED"
	ErrPayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	ErrFormatMismatch   = "FORMAT_MISMATCH"
	ErrCorruptFrame     = "CORRUPT_FRAME"
	ErrUnknownType      = "UNKNOWN_TYPE"
)

// NewError builds a bare Error with the current timestamp.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message, Timestamp: time.Now()}
}

// NewEntityError builds an Error carrying entity context.
func NewEntityError(code, message string, e Entity) *Error {
	return &Error{Code: code, Message: message, Entity: e, Timestamp: time.Now()}
}

// NewTypeError builds an Error carrying component/event type context.
func NewTypeError(code, message string, typeID int, typeName string) *Error {
	return &Error{Code: code, Message: message, TypeID: typeID, TypeName: typeName, Timestamp: time.Now()}
}

func (e *Error) WithEntity(entity Entity) *Error {
	e.Entity = entity
	return e
}

func (e *Error) WithType(typeID int, typeName string) *Error {
	e.TypeID = typeID
	e.TypeName = typeName
	return e
}

func (e *Error) WithSystem(system string) *Error {
	e.System = system
	return e
}

func (e *Error) WithDetails(details string) *Error {
	e.Details = details
	return e
}

// IsStaleHandle reports whether err is a StaleHandle error.
func IsStaleHandle(err error) bool { return hasCode(err, ErrStaleHandle) }

// IsMissingComponent reports whether err is a MissingComponent error.
func IsMissingComponent(err error) bool { return hasCode(err, ErrMissingComponent) }

// IsWrongPhase reports whether err is a WrongPhase error.
func IsWrongPhase(err error) bool { return hasCode(err, ErrWrongPhase) }

// IsCorruptFrame reports whether err is a CorruptFrame error.
func IsCorruptFrame(err error) bool { return hasCode(err, ErrCorruptFrame) }

func hasCode(err error, code string) bool {
	if e, ok := err.(*Error); ok {
		return e.Code == code
	}
	return false
}

// Common factory closures, mirroring the teacher's predefined-error idiom.
var (
	StaleHandleErr = func(e Entity) *Error {
		return NewEntityError(ErrStaleHandle, fmt.Sprintf("handle %s is stale", e), e)
	}
	MissingComponentErr = func(e Entity, typeID int, typeName string) *Error {
		return NewEntityError(ErrMissingComponent, fmt.Sprintf("entity %s lacks component %s", e, typeName), e).
			WithType(typeID, typeName)
	}
	AuthorityConflictErr = func(e Entity, typeID int, typeName string) *Error {
		return NewEntityError(ErrAuthorityConflict, fmt.Sprintf("entity %s: authority set without component %s present", e, typeName), e).
			WithType(typeID, typeName)
	}
	WrongPhaseErr = func(e Entity, typeName string, phase string) *Error {
		return NewEntityError(ErrWrongPhase, fmt.Sprintf("write to %s on entity %s forbidden in phase %s", typeName, e, phase), e).
			WithType(0, typeName)
	}
	OverflowErr = func(limit int) *Error {
		return NewError(ErrOverflow, fmt.Sprintf("component type registry exhausted (limit %d)", limit))
	}
	NotRegisteredErr = func(typeName string) *Error {
		return NewTypeError(ErrNotRegistered, fmt.Sprintf("type %s used before registration", typeName), -1, typeName)
	}
	PayloadTooLargeErr = func(size, limit int) *Error {
		return NewError(ErrPayloadTooLarge, fmt.Sprintf("payload of %d bytes exceeds limit of %d", size, limit))
	}
	FormatMismatchErr = func(got, want uint32) *Error {
		return NewError(ErrFormatMismatch, fmt.Sprintf("recording format version %d does not match reader version %d", got, want))
	}
	CorruptFrameErr = func(reason string) *Error {
		return NewError(ErrCorruptFrame, reason)
	}
	UnknownTypeErr = func(typeName string) *Error {
		return NewTypeError(ErrUnknownType, fmt.Sprintf("type %s cannot be resolved during replay", typeName), -1, typeName)
	}
)
