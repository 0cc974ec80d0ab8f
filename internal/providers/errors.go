package providers

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorKind string

const (
	ErrorRate      ErrorKind = "rate"
	ErrorTransient ErrorKind = "transient"
	ErrorQuota     ErrorKind = "quota"
	ErrorAuth      ErrorKind = "auth"
	ErrorContext   ErrorKind = "context"
	ErrorPermanent ErrorKind = "permanent"
)

// ProviderError is returned by the gateway once retries are exhausted, or
// immediately for kinds that retrying cannot fix.
type ProviderError struct {
	Provider string
	Model    string
	Kind     ErrorKind
	Attempts int
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s model %s failed (%s, %d attempts): %v",
		e.Provider, e.Model, e.Kind, e.Attempts, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// statusError lets HTTP clients carry the response code for classification.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}

// ClassifyError buckets a raw provider error. HTTP status codes win when
// present; otherwise message heuristics decide.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var se *statusError
	if errors.As(err, &se) {
		switch {
		case se.code == 429:
			return ErrorRate
		case se.code == 401 || se.code == 403:
			return ErrorAuth
		case se.code == 402:
			return ErrorQuota
		case se.code >= 500:
			return ErrorTransient
		}
	}
	e := strings.ToLower(err.Error())
	switch {
	case strings.Contains(e, "insufficient_quota"), strings.Contains(e, "quota"), strings.Contains(e, "credit"):
		return ErrorQuota
	case strings.Contains(e, "rate"), strings.Contains(e, "429"):
		return ErrorRate
	case strings.Contains(e, "unauthorized"), strings.Contains(e, "api key"), strings.Contains(e, "forbidden"):
		return ErrorAuth
	case strings.Contains(e, "context"), strings.Contains(e, "too long"):
		return ErrorContext
	case strings.Contains(e, "timeout"), strings.Contains(e, "temporarily"), strings.Contains(e, "unavailable"), strings.Contains(e, "connection"):
		return ErrorTransient
	default:
		return ErrorPermanent
	}
}

// Retryable reports whether another attempt could plausibly succeed.
func Retryable(kind ErrorKind) bool {
	return kind == ErrorRate || kind == ErrorTransient
}
