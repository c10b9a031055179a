// Package auth declares the external authentication/authorization
// collaborator consulted by the API layer. Production identity wiring
// (OIDC, mTLS, cluster certs) is out of scope (spec.md Non-goals); this
// package specifies the shape and ships a permissive no-op
// implementation for the reference binary.
package auth

import (
	"context"
	"net/http"

	"github.com/canonical/marathond/pathid"
)

// Principal names the caller an Authenticate call resolved.
type Principal struct {
	Name string
}

// Capabilities authenticates incoming requests and authorizes actions
// against paths in the group tree.
type Capabilities interface {
	Authenticate(ctx context.Context, r *http.Request) (Principal, error)
	Authorize(ctx context.Context, p Principal, action string, path pathid.PathId) error
}

// permissive grants every request an anonymous principal and authorizes
// every action, for local/dry-run operation of cmd/marathond.
type permissive struct{}

// NewPermissive returns a Capabilities implementation that authenticates
// and authorizes everything unconditionally.
func NewPermissive() Capabilities {
	return permissive{}
}

func (permissive) Authenticate(ctx context.Context, r *http.Request) (Principal, error) {
	return Principal{Name: "anonymous"}, nil
}

func (permissive) Authorize(ctx context.Context, p Principal, action string, path pathid.PathId) error {
	return nil
}
