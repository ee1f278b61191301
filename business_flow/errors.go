package businessflow

import (
	"errors"
	"fmt"
)

// Business errors raised by the content engine and its public flows
var (
	ErrCampaignNotFound   = errors.New("campaign not found")
	ErrSubscriberNotFound = errors.New("subscriber not found")
	ErrListNotFound       = errors.New("list not found")
	ErrTrackedURLNotFound = errors.New("tracked url not found")

	ErrTrackedURLPersistFailed = errors.New("tracked url persistence failed")
	ErrContentCacheFailed      = errors.New("content cache operation failed")

	ErrUnsubscribeTokenInvalid  = errors.New("unsubscribe token invalid")
	ErrUnsubscribeTokenMismatch = errors.New("unsubscribe token does not match subscriber")

	ErrReportExportFailed = errors.New("report export failed")
)

// BusinessError represents a business logic error with a stable code
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsSubscriberNotFound(err error) bool {
	return errors.Is(err, ErrSubscriberNotFound)
}

func IsListNotFound(err error) bool {
	return errors.Is(err, ErrListNotFound)
}

func IsTrackedURLNotFound(err error) bool {
	return errors.Is(err, ErrTrackedURLNotFound)
}

// IsNotFound reports whether err is any of the lookup misses the public
// tracking endpoints turn into a 404
func IsNotFound(err error) bool {
	return IsCampaignNotFound(err) || IsSubscriberNotFound(err) ||
		IsListNotFound(err) || IsTrackedURLNotFound(err)
}

func IsTrackedURLPersistFailed(err error) bool {
	return errors.Is(err, ErrTrackedURLPersistFailed)
}

func IsContentCacheFailed(err error) bool {
	return errors.Is(err, ErrContentCacheFailed)
}

func IsUnsubscribeTokenInvalid(err error) bool {
	return errors.Is(err, ErrUnsubscribeTokenInvalid)
}

func IsUnsubscribeTokenMismatch(err error) bool {
	return errors.Is(err, ErrUnsubscribeTokenMismatch)
}
