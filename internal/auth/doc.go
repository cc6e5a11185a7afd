// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

// Package auth provides authentication and credential recovery for Agora.
//
// # Domain Types
//
// Domain types (User, Session, PasswordReset) should be created using their
// constructors:
//   - NewUser - creates a User with a generated ID and password hash
//   - NewSession - creates a Session with validated user and expiry
//   - NewPasswordReset - creates a PasswordReset with validated user and expiry
//
// Repository implementations receive pre-validated types from these constructors.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - register, login, logout, forgot/change password
//   - SessionManager - per-request session establishment and teardown
//   - ResetTokenService - single-use password reset tokens
//
// Expected failures (bad input, unknown user, wrong token) are reported as
// MutationResult values. Store and hashing faults are oops errors that Service
// logs and maps to an internal error result.
package auth
