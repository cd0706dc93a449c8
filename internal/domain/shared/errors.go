// Package shared содержит общие для всех доменных пакетов типы: идентификаторы
// арендаторов, ошибки с классификацией, события и блокировки.
package shared

import (
	"errors"
	"fmt"
)

// Базовые ошибки. Доменные ошибки оборачивают одну из них, и проверка идёт
// через errors.Is или KindOf.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// ErrConcurrentModification - запись проиграла проверку ревизии коллекции.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	ErrStorage            = errors.New("storage failure")
	ErrConfiguration      = errors.New("configuration defect")
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// ══════════════════════════════════════════════════════════════════════════════
// KIND
// ══════════════════════════════════════════════════════════════════════════════

// Kind - класс ошибки, по которому HTTP-слой выбирает статус, а команды
// решают, повторять ли запись.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindConflict
	KindConcurrent
	KindInvalidState
	KindUnauthorized
	KindForbidden
	KindUnavailable
)

var kindOrder = []struct {
	kind  Kind
	bases []error
}{
	{KindConcurrent, []error{ErrConcurrentModification}},
	{KindNotFound, []error{ErrNotFound}},
	{KindUnauthorized, []error{ErrUnauthorized}},
	{KindForbidden, []error{ErrForbidden}},
	{KindInvalidState, []error{ErrInvalidState, ErrStateTransition}},
	{KindConflict, []error{ErrAlreadyExists}},
	{KindValidation, []error{ErrInvalidID, ErrInvalidInput, ErrEmptyValue, ErrValueOutOfRange, ErrInvalidFormat}},
	{KindUnavailable, []error{ErrServiceUnavailable, ErrTimeout, ErrExternalService}},
}

// KindOf классифицирует ошибку. Первое совпадение в порядке kindOrder
// выигрывает; всё нераспознанное - KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	for _, k := range kindOrder {
		for _, base := range k.bases {
			if errors.Is(err, base) {
				return k.kind
			}
		}
	}
	return KindInternal
}

func IsNotFound(err error) bool               { return errors.Is(err, ErrNotFound) }
func IsConcurrentModification(err error) bool { return errors.Is(err, ErrConcurrentModification) }
func IsValidation(err error) bool             { return KindOf(err) == KindValidation }

// IsRetryable - временный сбой: недоступный сервис, таймаут или гонка ревизий.
func IsRetryable(err error) bool {
	k := KindOf(err)
	return k == KindConcurrent || (k == KindUnavailable && !errors.Is(err, ErrExternalService))
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERROR
// ══════════════════════════════════════════════════════════════════════════════

// DomainError - ошибка с контекстом: домен, операция, базовая ошибка.
type DomainError struct {
	Domain  string
	Op      string
	Kind    error
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap отдаёт и базовую, и исходную ошибку, так что errors.Is и
// errors.As видят обе.
func (e *DomainError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewDomainError создаёт доменную ошибку.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError добавляет доменный контекст к существующей ошибке.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// StorageFailure оборачивает ошибку хранилища в ErrStorage. Конфликт
// ревизий и уже обёрнутые ошибки проходят как есть.
func StorageFailure(op string, err error) error {
	if err == nil || errors.Is(err, ErrConcurrentModification) || errors.Is(err, ErrStorage) {
		return err
	}
	return WrapError("storage", op, ErrStorage, "storage operation failed", err)
}

// ConcurrentModification - запись с устаревшей базовой ревизией.
func ConcurrentModification(collection string, base, current int64) error {
	return NewDomainError("storage", "Save", ErrConcurrentModification,
		fmt.Sprintf("collection %q changed: base revision %d, stored revision %d", collection, base, current))
}

// Ошибки агентства.
var (
	ErrAgencyRequired     = NewDomainError("agency", "Validate", ErrInvalidID, "agency id is required")
	ErrPartnerNotFound    = NewDomainError("agency", "FindPartner", ErrNotFound, "partner not found")
	ErrReadOnlyRole       = NewDomainError("agency", "Authorize", ErrForbidden, "role is read-only")
	ErrOwnerRequired      = NewDomainError("agency", "Authorize", ErrForbidden, "owner role required")
	ErrInvalidRole        = NewDomainError("agency", "Validate", ErrInvalidInput, "invalid role")
	ErrInvalidCurrency    = NewDomainError("agency", "Validate", ErrInvalidInput, "invalid currency")
	ErrInvalidClaimAmount = NewDomainError("agency", "ClaimCommission", ErrValueOutOfRange, "commission amount must be positive")
)

// Ошибки уведомлений.
var (
	ErrNotificationFailed = NewDomainError("notification", "Send", ErrExternalService, "failed to send notification")
	ErrInvalidChannel     = NewDomainError("notification", "Validate", ErrInvalidInput, "invalid notification channel")
	ErrNoRecipient        = NewDomainError("notification", "Validate", ErrEmptyValue, "message has no recipient")
)
