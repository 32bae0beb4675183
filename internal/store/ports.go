// Package store defines the key-value persistence port the ledger is saved
// through, and helpers shared by its adapters.
package store

import (
	"context"
	"strings"
)

// DefaultNamespace is the storage bucket used when none is configured.
const DefaultNamespace = "balance-tracker"

// Ports for outbound adapters.
type (
	// Store is a durable key-value store. Operations are atomic per key only.
	Store interface {
		// Get returns found=false when the key is absent.
		Get(ctx context.Context, key string) (value []byte, found bool, err error)
		Set(ctx context.Context, key string, value []byte) error
		Delete(ctx context.Context, key string) error
	}

	// Pinger is implemented by adapters backed by a remote resource.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// Key joins a namespace and a key name, e.g. "balance-tracker/balance".
func Key(namespace, name string) string {
	namespace = strings.Trim(namespace, "/")
	if namespace == "" {
		return name
	}
	return namespace + "/" + name
}

type namespaced struct {
	inner     Store
	namespace string
}

// WithNamespace scopes every key of s under namespace.
func WithNamespace(s Store, namespace string) Store {
	return &namespaced{inner: s, namespace: namespace}
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return n.inner.Get(ctx, Key(n.namespace, key))
}

func (n *namespaced) Set(ctx context.Context, key string, value []byte) error {
	return n.inner.Set(ctx, Key(n.namespace, key), value)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	return n.inner.Delete(ctx, Key(n.namespace, key))
}

// Ping forwards to the wrapped store when it supports it.
func (n *namespaced) Ping(ctx context.Context) error {
	if p, ok := n.inner.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
