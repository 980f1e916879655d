package service

import (
	"errors"
	"fmt"
	"net/http"
)

// Expiry conditions abort the current call outright and are the only
// business conditions surfaced as Go errors from the service API; every
// other expected outcome travels inside UpdateResult as a *MessageError.
var (
	ErrAuthorisationExpired = errors.New("authorisation expired")
	ErrRedirectURLExpired   = errors.New("redirect url expired")
)

// Machine-readable error codes carried to the TPP.
const (
	CodeFormatError           = "FORMAT_ERROR"
	CodePsuCredentialsInvalid = "PSU_CREDENTIALS_INVALID"
	CodeScaMethodUnknown      = "SCA_METHOD_UNKNOWN"
	CodeResourceUnknown       = "RESOURCE_UNKNOWN"
	CodeStatusInvalid         = "STATUS_INVALID"
	CodeServiceError          = "SERVICE_ERROR"
)

// MessageError is a structured, recoverable business error returned
// inside an UpdateResult so callers can always inspect the outcome.
type MessageError struct {
	Code       string `json:"code"`
	HTTPStatus int    `json:"-"`
	Text       string `json:"text,omitempty"`
}

func (e *MessageError) Error() string {
	if e.Text == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Text)
}

func formatError(text string) *MessageError {
	return &MessageError{Code: CodeFormatError, HTTPStatus: http.StatusBadRequest, Text: text}
}

func credentialsInvalid() *MessageError {
	return &MessageError{Code: CodePsuCredentialsInvalid, HTTPStatus: http.StatusUnauthorized}
}

func scaMethodUnknown(text string) *MessageError {
	return &MessageError{Code: CodeScaMethodUnknown, HTTPStatus: http.StatusBadRequest, Text: text}
}

func resourceUnknown(text string) *MessageError {
	return &MessageError{Code: CodeResourceUnknown, HTTPStatus: http.StatusForbidden, Text: text}
}

func statusInvalid(text string) *MessageError {
	return &MessageError{Code: CodeStatusInvalid, HTTPStatus: http.StatusConflict, Text: text}
}

func serviceError() *MessageError {
	return &MessageError{Code: CodeServiceError, HTTPStatus: http.StatusInternalServerError}
}
