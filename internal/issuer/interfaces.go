package issuer

import (
	"context"

	"github.com/atlas-sanctum/vrc-issuer/pkg/atlas"
	"github.com/atlas-sanctum/vrc-issuer/pkg/publishers"
)

// CredentialClient issues one credential per call. *atlas.Client satisfies it.
type CredentialClient interface {
	IssueCredentialResponse(ctx context.Context, payload string) (*atlas.Response, error)
}

// EventPublisher publishes issuance events downstream.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// Deduper remembers which requests were already issued.
type Deduper interface {
	SeenRequest(key string) (bool, error)
	MarkRequest(key string) error
}
