package auth

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-approvals/core"
)

var ErrUnauthenticated = errors.New("auth: missing or invalid credential")

// CredentialError reports a failed verification. The message never includes
// any part of the presented material.
type CredentialError struct {
	Scheme  string
	Missing bool
}

func (e *CredentialError) Error() string {
	if e != nil && e.Missing {
		return "auth: " + e.Scheme + " credential is missing"
	}
	scheme := SchemeAPIKey
	if e != nil && e.Scheme != "" {
		scheme = e.Scheme
	}
	return "auth: " + scheme + " credential rejected"
}

func (e *CredentialError) Unwrap() error { return ErrUnauthenticated }

func (e *CredentialError) ToServiceError() *goerrors.Error {
	metadata := map[string]any{"scheme": SchemeAPIKey}
	if e != nil {
		if e.Scheme != "" {
			metadata["scheme"] = e.Scheme
		}
		metadata["missing"] = e.Missing
	}
	return goerrors.New(e.Error(), goerrors.CategoryAuth).
		WithCode(core.ApprovalHTTPStatus(goerrors.CategoryAuth)).
		WithTextCode(core.ApprovalErrorUnauthenticated).
		WithMetadata(metadata)
}
