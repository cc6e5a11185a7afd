// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package auth

import "net/http"

// User-visible messages. Tests and clients match on these strings.
const (
	MsgRegistered         = "User registration successfully"
	MsgLoggedIn           = "Login successfully"
	MsgPasswordReset      = "User password reset successfully"
	MsgDuplicate          = "Duplicated username or email"
	MsgUserNotFound       = "User not found"
	MsgIdentityIncorrect  = "Username or email incorrect"
	MsgWrongPassword      = "Wrong password"
	MsgInvalidResetToken  = "Invalid or expired password reset token"
	MsgUserNoLongerExists = "User no longer exists"
	MsgInternal           = "Internal server error"
)

// MutationResult is the outcome of a state-changing auth operation.
type MutationResult struct {
	Code    int          `json:"code"`
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
	User    *User        `json:"user,omitempty"`
}

// FieldError returns the error reported for field, if any.
func (r MutationResult) FieldError(field string) (FieldError, bool) {
	for _, fe := range r.Errors {
		if fe.Field == field {
			return fe, true
		}
	}
	return FieldError{}, false
}

func succeeded(message string, user *User) MutationResult {
	return MutationResult{Code: http.StatusOK, Success: true, Message: message, User: user}
}

func rejected(message string, errs ...FieldError) MutationResult {
	return MutationResult{Code: http.StatusBadRequest, Success: false, Message: message, Errors: errs}
}

func invalidInput(f *ValidationFailure) MutationResult {
	return rejected(f.Message, f.Error)
}

func invalidResetToken() MutationResult {
	return rejected(MsgInvalidResetToken, FieldError{Field: "token", Message: MsgInvalidResetToken})
}

func internalFailure() MutationResult {
	return MutationResult{Code: http.StatusInternalServerError, Success: false, Message: MsgInternal}
}
