package erg

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
)

const (
	MainnetExplorer = "https://api.ergoplatform.com/api/v1"
	TestnetExplorer = "https://api-testnet.ergoplatform.com/api/v1"
)

// Balance is the confirmed balance of an address as reported by the explorer.
type Balance struct {
	NanoErgs   Amount
	TokenCount int
}

type Explorer struct {
	client  *retryablehttp.Client
	mainnet *url.URL
	testnet *url.URL
}

func NewExplorer(client *retryablehttp.Client, mainnet, testnet string) (*Explorer, error) {
	if mainnet == "" {
		mainnet = MainnetExplorer
	}
	if testnet == "" {
		testnet = TestnetExplorer
	}

	m, err := url.Parse(strings.TrimRight(mainnet, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse mainnet explorer url - %w", err)
	}
	t, err := url.Parse(strings.TrimRight(testnet, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse testnet explorer url - %w", err)
	}

	return &Explorer{
		client:  client,
		mainnet: m,
		testnet: t,
	}, nil
}

func (e *Explorer) baseURL(network string) string {
	if IsTestnet(network) {
		return e.testnet.String()
	}
	return e.mainnet.String()
}

// IsTestnet reports whether a node network name denotes testnet.
func IsTestnet(network string) bool {
	return strings.EqualFold(strings.TrimSpace(network), "testnet")
}

// ConfirmedBalance fetches the confirmed balance of address on network.
func (e *Explorer) ConfirmedBalance(ctx context.Context, address, network string) (Balance, error) {
	var balance Balance

	endpoint := fmt.Sprintf("%s/addresses/%s/balance/confirmed", e.baseURL(network), url.PathEscape(address))
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return balance, fmt.Errorf("failed to build balance request - %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return balance, fmt.Errorf("error calling ergo api explorer - %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return balance, fmt.Errorf("error reading balance body - %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return balance, fmt.Errorf("explorer balance request failed: HTTP %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return balance, fmt.Errorf("%w: explorer balance", ErrInvalidJSON)
	}

	r := gjson.ParseBytes(body)
	if balance.NanoErgs, err = amountFromResult(r.Get("nanoErgs")); err != nil {
		return balance, fmt.Errorf("error parsing balance - %w", err)
	}
	balance.TokenCount = len(r.Get("tokens").Array())

	return balance, nil
}
