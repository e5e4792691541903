// Package store persists session tokens across application restarts.
//
// The browser original kept tokens in localStorage — a durable string
// key/value map. TokenStore is that map's contract: plain string values,
// atomic per-key writes, and deletion (not blanking) on logout.
package store

import "context"

// Storage keys. Kept verbatim from the dashboard frontend so a Go
// embedding and the browser client remain drop-in compatible.
const (
	KeyAccessKey  = "accessKey"  // primary (bearer) token
	KeyTaipeiPass = "taipeiPass" // secondary federated-session token
)

// TokenStore is a durable string key/value store.
//
// Contract:
//   - Get returns ok=false (not an error) when the key is absent.
//   - Set overwrites atomically per key.
//   - Delete removes the key entirely; deleting an absent key is a no-op.
type TokenStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
