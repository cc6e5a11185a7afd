// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package auth

import (
	"strings"
	"unicode/utf8"
)

// Field length rules. Minimum lengths are counted in runes and must be
// strictly exceeded.
const (
	// UsernameMinExclusive counts runes, so a character outside the BMP
	// counts once where a UTF-16 length would count two.
	UsernameMinExclusive = 4
	PasswordMinExclusive = 6
	// PasswordMaxBytes is the longest password bcrypt accepts.
	PasswordMaxBytes = 72
)

const msgPasswordTooLong = "Length must be at most 72 bytes"

// FieldError describes a client-correctable problem with one input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationFailure is the first rule an input violated.
type ValidationFailure struct {
	// Message summarizes the failure, e.g. "Invalid email".
	Message string
	Error   FieldError
}

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ValidateRegistration checks a registration input and returns the first
// violated rule, or nil if the input is acceptable. Rules are checked in
// order: email format, username length, username without '@', password
// length, password size in bytes.
func ValidateRegistration(in RegisterInput) *ValidationFailure {
	if !strings.Contains(in.Email, "@") {
		return &ValidationFailure{
			Message: "Invalid email",
			Error:   FieldError{Field: "email", Message: "Email must include @ symbol"},
		}
	}

	if utf8.RuneCountInString(in.Username) <= UsernameMinExclusive {
		return &ValidationFailure{
			Message: "Invalid username",
			Error:   FieldError{Field: "username", Message: "Length must be greater than 4"},
		}
	}

	if strings.Contains(in.Username, "@") {
		return &ValidationFailure{
			Message: "Invalid username",
			Error:   FieldError{Field: "username", Message: "Username cannot include @"},
		}
	}

	if !passwordLongEnough(in.Password) {
		return &ValidationFailure{
			Message: "Invalid password",
			Error:   FieldError{Field: "password", Message: "Length must be greater than 6"},
		}
	}

	if len(in.Password) > PasswordMaxBytes {
		return &ValidationFailure{
			Message: "Invalid password",
			Error:   FieldError{Field: "password", Message: msgPasswordTooLong},
		}
	}

	return nil
}

// ValidateNewPassword applies the registration password rules to a
// replacement password. The reported field is "newPassword".
func ValidateNewPassword(password string) *ValidationFailure {
	if !passwordLongEnough(password) {
		return &ValidationFailure{
			Message: "Invalid password",
			Error:   FieldError{Field: "newPassword", Message: "Length must be greater than 6"},
		}
	}
	if len(password) > PasswordMaxBytes {
		return &ValidationFailure{
			Message: "Invalid password",
			Error:   FieldError{Field: "newPassword", Message: msgPasswordTooLong},
		}
	}
	return nil
}

func passwordLongEnough(password string) bool {
	return utf8.RuneCountInString(password) > PasswordMinExclusive
}
