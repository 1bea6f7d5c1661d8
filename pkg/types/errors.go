package types

import (
	"context"
	"errors"
	"fmt"
)

// Common bundler errors
var (
	// Parameter validation errors
	ErrNilRPC         = errors.New("rpc client is nil")
	ErrNilFeePayer    = errors.New("fee payer is nil")
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrNoInstructions = errors.New("requires at least one instruction")
	ErrNoGroups       = errors.New("requires at least one instruction group")

	// Wallet / account errors
	ErrWalletNotFound        = errors.New("wallet not found")
	ErrUnrecognizedKeyFormat = errors.New("unrecognized key format")
	ErrAccountNotFound       = errors.New("account not found")
	ErrLookupTableNotFound   = errors.New("lookup table not found")
	ErrInsufficientBalance   = errors.New("insufficient balance")

	// Accounting defects
	ErrNegativeAllocation = errors.New("negative token allocation")

	// Transaction errors
	ErrTransactionTooLarge = errors.New("transaction exceeds maximum size")
	ErrTransactionFailed   = errors.New("transaction failed")
	ErrBlockhashExpired    = errors.New("blockhash expired before confirmation")
	ErrBundleNotConfirmed  = errors.New("bundle not confirmed")
	ErrRelayRejected       = errors.New("bundle rejected by every relay endpoint")
)

// RPCError wraps RPC failures with operation context.
type RPCError struct {
	Op  string
	Err error
}

func (e RPCError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e RPCError) Unwrap() error {
	return e.Err
}

// ValidationError represents input validation failures.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}

// EndpointError records a single relay endpoint failure.
type EndpointError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e EndpointError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("endpoint %s: status %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("endpoint %s: %v", e.Endpoint, e.Err)
}

func (e EndpointError) Unwrap() error {
	return e.Err
}

// OnChainError carries the error detail reported by a confirmed-but-failed transaction.
type OnChainError struct {
	Signature string
	Detail    interface{}
}

func (e OnChainError) Error() string {
	return fmt.Sprintf("transaction %s failed on chain: %v", e.Signature, e.Detail)
}

func (e OnChainError) Unwrap() error {
	return ErrTransactionFailed
}

// IsValidationError reports whether err aborts a launch before any on-chain action.
func IsValidationError(err error) bool {
	var v ValidationError
	return errors.As(err, &v) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrWalletNotFound) ||
		errors.Is(err, ErrUnrecognizedKeyFormat)
}

// IsRetryableError checks if an error is retryable.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Defects and bad input never heal by retrying.
	if errors.Is(err, ErrNegativeAllocation) || errors.Is(err, ErrTransactionTooLarge) {
		return false
	}
	if IsValidationError(err) {
		return false
	}
	return true
}
