package gateway

import (
	"context"

	web5 "github.com/totegamma/web5-playground"
	"github.com/totegamma/web5-playground/client"
)

// LedgerGateway adapts the explorer HTTP client to the resolver port.
// Address syntax is checked inside the client before any network call.
type LedgerGateway struct {
	client *client.Client
}

func NewLedgerGateway(cl *client.Client) *LedgerGateway {
	return &LedgerGateway{client: cl}
}

func (g *LedgerGateway) ResolveDocument(ctx context.Context, address string) (web5.IdentityDocument, error) {
	return g.client.ResolveDocument(ctx, address)
}
