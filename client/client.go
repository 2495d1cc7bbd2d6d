// Package client talks to the ledger explorer API that holds identity
// documents. Document resolution is intentionally uncached: a resolution
// authorizes exactly one action and freshness is a security property.
package client

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	web5 "github.com/totegamma/web5-playground"
	"github.com/totegamma/web5-playground/internal/domain"
)

const (
	defaultTimeout = 3 * time.Second
	userAgent      = "web5-playground/0.1"
)

type Client struct {
	client   *http.Client
	cache    *cache.Cache
	explorer string
}

// New builds a client against the explorer base URL, e.g.
// "https://testnet-api.explorer.example.org".
func New(explorer string) *Client {
	httpClient := http.Client{
		Timeout: defaultTimeout,
	}

	c := &Client{
		client:   &httpClient,
		cache:    cache.New(10*time.Minute, 15*time.Minute),
		explorer: explorer,
	}
	httpClient.Transport = c
	return c
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	return http.DefaultTransport.RoundTrip(req)
}

// ValidateAddress checks the bech32 syntax of a ledger address before any
// network round trip.
func ValidateAddress(address string) error {
	_, _, err := bech32.DecodeAndConvert(address)
	if err != nil {
		return errors.Wrap(domain.MalformedError{Reason: "address format invalid"}, err.Error())
	}
	return nil
}

// ResolveDocument fetches the identity document bound to a ledger address.
// A missing binding is domain.NotFoundError, an unreachable explorer is
// domain.TransportError, an undecodable document is domain.MalformedError.
func (c *Client) ResolveDocument(ctx context.Context, address string) (web5.IdentityDocument, error) {
	if err := ValidateAddress(address); err != nil {
		return web5.IdentityDocument{}, err
	}

	url := c.explorer + "/api/v2/addresses/" + address + "/did-document"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return web5.IdentityDocument{}, errors.Wrap(err, "failed to create request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return web5.IdentityDocument{}, errors.Wrap(domain.TransportError{Reason: "explorer unreachable"}, err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return web5.IdentityDocument{}, domain.NotFoundError{Resource: "identity document"}
	case resp.StatusCode != http.StatusOK:
		return web5.IdentityDocument{}, domain.TransportError{Reason: resp.Status}
	}

	var doc web5.IdentityDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return web5.IdentityDocument{}, errors.Wrap(domain.MalformedError{Reason: "document decode failed"}, err.Error())
	}
	if doc.VerificationMethods == nil {
		return web5.IdentityDocument{}, domain.MalformedError{Reason: "document has no verification methods"}
	}

	return doc, nil
}

// LedgerInfo is explorer metadata surfaced on the health endpoint.
type LedgerInfo struct {
	Network string `json:"network"`
	TipHash string `json:"tipHash"`
	Height  int64  `json:"height"`
}

// GetLedgerInfo reports explorer chain metadata. Unlike documents this is
// cacheable: it only feeds health reporting, never authorization.
func (c *Client) GetLedgerInfo(ctx context.Context) (LedgerInfo, error) {
	const cacheKey = "ledger:info"
	if x, found := c.cache.Get(cacheKey); found {
		return x.(LedgerInfo), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.explorer+"/api/v2/info", nil)
	if err != nil {
		return LedgerInfo{}, errors.Wrap(err, "failed to create request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return LedgerInfo{}, errors.Wrap(domain.TransportError{Reason: "explorer unreachable"}, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return LedgerInfo{}, domain.TransportError{Reason: resp.Status}
	}

	var info LedgerInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return LedgerInfo{}, errors.Wrap(domain.MalformedError{Reason: "info decode failed"}, err.Error())
	}

	c.cache.Set(cacheKey, info, cache.DefaultExpiration)
	return info, nil
}
