package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced by ticket transitions.
const (
	CodeNotTicketChannel   = "NOT_TICKET_CHANNEL"
	CodeForbidden          = "FORBIDDEN"
	CodeProvisioningFailed = "PROVISIONING_FAILED"
	CodeCounterUnavailable = "COUNTER_UNAVAILABLE"
	CodeCreateInProgress   = "CREATE_IN_PROGRESS"
	CodeSetupFailed        = "SETUP_FAILED"
	CodeInternal           = "INTERNAL_ERROR"
)

// User-facing messages. Internal detail never reaches chat users.
const (
	MsgNotTicketChannel = "This command can only be used in ticket channels."
	MsgForbiddenClose   = "You do not have permission to close this ticket."
	MsgCreateFailed     = "There was an error creating your ticket. Please try again later."
	MsgCreateInProgress = "Your ticket is already being created. Please wait a moment."
	MsgSetupFailed      = "An error occurred while setting up the ticket system. Please check the bot permissions."
	MsgGeneric          = "Sorry, something went wrong. Please try again later."
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewNotTicketChannel(channelID string) error {
	return NewDomainError(CodeNotTicketChannel, MsgNotTicketChannel, http.StatusNotFound, map[string]any{"channel_id": channelID})
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewCreateInProgress() error {
	return NewDomainError(CodeCreateInProgress, MsgCreateInProgress, http.StatusConflict, nil)
}

func NewProvisioningFailed(err error) error {
	return &DomainError{
		Code:       CodeProvisioningFailed,
		Message:    MsgCreateFailed,
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewCounterUnavailable(err error) error {
	return &DomainError{
		Code:       CodeCounterUnavailable,
		Message:    MsgCreateFailed,
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewSetupFailed(err error) error {
	return &DomainError{
		Code:       CodeSetupFailed,
		Message:    MsgSetupFailed,
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    MsgGeneric,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    MsgGeneric,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsCode reports whether err carries the given DomainError code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}

// UserMessage returns the text safe to show a chat user for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return ToDomainError(err).Message
}
