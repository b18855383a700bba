package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrAlreadyExists      = errors.New("already exists")
	ErrIntegrityViolation = errors.New("queue integrity violation")
	ErrTransientStore     = errors.New("transient store failure")
	ErrNotEligible        = errors.New("order not eligible for queue")
	ErrConfig             = errors.New("invalid configuration")
)

// Failure is the structured form of an error handed to callers over HTTP or AMQP.
type Failure struct {
	Kind    string                 `json:"kind"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Describe classifies err against the sentinel errors.
func Describe(err error, data map[string]interface{}) *Failure {
	kind := "internal"
	switch {
	case errors.Is(err, ErrNotFound):
		kind = "not_found"
	case errors.Is(err, ErrInvalidTransition):
		kind = "invalid_transition"
	case errors.Is(err, ErrAlreadyExists):
		kind = "already_exists"
	case errors.Is(err, ErrIntegrityViolation):
		kind = "integrity_violation"
	case errors.Is(err, ErrTransientStore):
		kind = "transient_store"
	case errors.Is(err, ErrNotEligible):
		kind = "not_eligible"
	case errors.Is(err, ErrConfig):
		kind = "config"
	}

	return &Failure{Kind: kind, Message: err.Error(), Data: data}
}
