// Package state persists learning-tier snapshots as JSON documents keyed by
// tier name. Two backends ship: local files for single-node deployments and
// Redis for shared or ephemeral-disk environments.
package state

import (
	"context"
	"errors"
)

// ErrNotFound marks a missing document. Callers treat it as a cold start;
// every other load error means the document exists but is unusable.
var ErrNotFound = errors.New("state: document not found")

// Store saves and loads named JSON documents.
type Store interface {
	Save(ctx context.Context, key string, doc any) error
	Load(ctx context.Context, key string, into any) error
}

// Document keys, one per learning tier plus the orchestrator's own state.
const (
	KeyBandit = "bandit"
	KeyRegime = "regime"
	KeyPolicy = "policy"
	KeyMeta   = "meta"
	KeyEngine = "engine"
)
