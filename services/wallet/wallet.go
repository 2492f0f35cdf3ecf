package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stableminer/stableminer/dexy"
	"github.com/stableminer/stableminer/erg"
	"github.com/stableminer/stableminer/state"
)

type Status string

const (
	StatusOffline   Status = "offline"
	StatusNeedsKey  Status = "needs_key"
	StatusEmpty     Status = "empty"
	StatusConnected Status = "connected"

	DefaultEndpoint = "http://127.0.0.1:9053"

	probeTimeout = 1200 * time.Millisecond
	scanTimeout  = 800 * time.Millisecond
)

var (
	ErrMissingEndpoint = errors.New("missing Ergo node endpoint")
	ErrNoSession       = errors.New("wallet session not found")

	scanCandidates = []string{
		DefaultEndpoint,
		"http://localhost:9053",
		"http://127.0.0.1:9052",
		"http://localhost:9052",
		"http://127.0.0.1:9051",
		"http://localhost:9051",
	}
)

type ConnectRequest struct {
	Endpoint     string `json:"endpoint"`
	NodeEndpoint string `json:"nodeEndpoint"`
	Token        string `json:"token"`
	APIKey       string `json:"apiKey"`
	Network      string `json:"network"`
}

type ConnectResult struct {
	Status    Status   `json:"status"`
	SessionID string   `json:"sessionId,omitempty"`
	Address   string   `json:"address,omitempty"`
	Addresses []string `json:"addresses,omitempty"`
	Endpoint  string   `json:"endpoint,omitempty"`
	Network   string   `json:"network,omitempty"`
	Message   string   `json:"message,omitempty"`
	Error     string   `json:"error,omitempty"`
}

type StatusResult struct {
	Connected bool     `json:"connected"`
	Address   string   `json:"address,omitempty"`
	Addresses []string `json:"addresses,omitempty"`
	Network   string   `json:"network,omitempty"`
	Balance   string   `json:"balance,omitempty"`
	Tokens    string   `json:"tokens,omitempty"`
	Spendable string   `json:"spendable,omitempty"`
	UTXOCount int      `json:"utxoCount"`
	Error     string   `json:"error,omitempty"`
}

type NodeSummary struct {
	Name       string `json:"name,omitempty"`
	Version    string `json:"appVersion,omitempty"`
	FullHeight int    `json:"fullHeight"`
	Network    string `json:"network,omitempty"`
}

type ScanResult struct {
	Found    bool         `json:"found"`
	Endpoint string       `json:"endpoint,omitempty"`
	Info     *NodeSummary `json:"info,omitempty"`
}

// Service connects node wallets and keeps their sessions.
type Service struct {
	sessions   *state.Sessions
	clients    erg.HTTPClients
	explorer   *erg.Explorer
	endpoint   string
	candidates []string
}

func NewService(sessions *state.Sessions, clients erg.HTTPClients, explorer *erg.Explorer, defaultEndpoint string) *Service {
	if defaultEndpoint == "" {
		defaultEndpoint = DefaultEndpoint
	}
	return &Service{
		sessions:   sessions,
		clients:    clients,
		explorer:   explorer,
		endpoint:   defaultEndpoint,
		candidates: scanCandidates,
	}
}

// ParseNetwork reads the network from a node's reported name, falling back to
// the caller's hint and then to mainnet.
func ParseNetwork(reported, fallback string) string {
	raw := reported
	if raw == "" {
		raw = fallback
	}
	lowered := strings.ToLower(raw)
	switch {
	case strings.Contains(lowered, "test"):
		return "testnet"
	case strings.Contains(lowered, "main"):
		return "mainnet"
	}
	if strings.EqualFold(fallback, "testnet") {
		return "testnet"
	}
	return "mainnet"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Connect probes the node, reads its wallet addresses with the API key and
// opens a session. An unreachable node or a missing key is reported through
// the result status, not as an error.
func (s *Service) Connect(ctx context.Context, req ConnectRequest) (ConnectResult, error) {
	endpoint := erg.NormalizeEndpoint(firstNonEmpty(req.Endpoint, req.NodeEndpoint, s.endpoint))
	if endpoint == "" {
		return ConnectResult{}, ErrMissingEndpoint
	}
	apiKey := firstNonEmpty(req.Token, req.APIKey)

	node, err := erg.NewErgNode(s.clients, endpoint, apiKey)
	if err != nil {
		return ConnectResult{}, err
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	info, err := node.Info(probeCtx)
	cancel()
	if err != nil {
		zap.L().Debug("node probe failed", zap.String("endpoint", endpoint), zap.Error(err))
		return ConnectResult{Status: StatusOffline, Endpoint: endpoint, Error: "Ergo node not reachable."}, nil
	}

	network := ParseNetwork(info.Network, req.Network)
	result := ConnectResult{Endpoint: endpoint, Network: network}

	if apiKey == "" {
		result.Status = StatusNeedsKey
		result.Message = "Ergo node API key required to access wallet addresses."
		return result, nil
	}

	addresses, err := node.WalletAddresses(ctx)
	if err != nil {
		zap.L().Debug("wallet addresses unavailable", zap.String("endpoint", endpoint), zap.Error(err))
		result.Status = StatusNeedsKey
		result.Message = "Unable to read wallet addresses. Check the API key."
		return result, nil
	}
	if len(addresses) == 0 {
		result.Status = StatusEmpty
		result.Message = "No wallet addresses returned by the node."
		return result, nil
	}

	sess := s.sessions.Create(state.Session{
		Endpoint:  endpoint,
		APIKey:    apiKey,
		Network:   network,
		Addresses: addresses,
		Node:      node,
	})

	zap.L().Info("wallet connected",
		zap.String("session_id", sess.ID),
		zap.String("wallet_addr", sess.Address()),
		zap.String("network", network),
	)

	result.Status = StatusConnected
	result.SessionID = sess.ID
	result.Address = sess.Address()
	result.Addresses = sess.Addresses
	return result, nil
}

// Status refreshes the session's addresses and reports its balances. The
// explorer balance is cached briefly per address.
func (s *Service) Status(ctx context.Context, sessionID string) StatusResult {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return StatusResult{}
	}

	addresses, err := sess.Node.WalletAddresses(ctx)
	if err != nil {
		return StatusResult{Error: "Unable to reach the Ergo node wallet."}
	}
	sess, _ = s.sessions.SetAddresses(sess.ID, addresses)
	address := sess.Address()
	if address == "" {
		return StatusResult{Error: "No wallet address found."}
	}

	result := StatusResult{
		Connected: true,
		Address:   address,
		Addresses: sess.Addresses,
		Network:   dexy.NetworkLabel(sess.Network),
		Balance:   "--",
		Tokens:    "--",
	}

	balance, cached := s.sessions.Balance(sess.ID, address)
	if !cached && s.explorer != nil {
		balance, err = s.explorer.ConfirmedBalance(ctx, address, sess.Network)
		if err != nil {
			zap.L().Info("explorer balance unavailable", zap.Error(err), zap.String("wallet_addr", address))
		} else {
			s.sessions.StoreBalance(sess.ID, address, balance)
			cached = true
		}
	}
	if cached {
		result.Balance = dexy.FormatErgBalance(balance.NanoErgs)
		result.Tokens = fmt.Sprint(balance.TokenCount)
	}

	boxes, err := sess.Node.WalletBoxes(ctx)
	if err != nil {
		result.Error = "Unable to read wallet boxes."
		return result
	}
	result.Spendable = dexy.FormatNanoErg(dexy.SumWalletValue(boxes))
	result.UTXOCount = len(boxes)

	return result
}

func (s *Service) Disconnect(sessionID string) {
	if s.sessions.Delete(sessionID) {
		zap.L().Info("wallet disconnected", zap.String("session_id", sessionID))
	}
}

// Account resolves a session into the node and account the mint operations
// run against.
func (s *Service) Account(sessionID string) (*erg.ErgNode, dexy.Account, error) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, dexy.Account{}, ErrNoSession
	}
	return sess.Node, dexy.Account{
		SessionID: sess.ID,
		Address:   sess.Address(),
		Network:   sess.Network,
	}, nil
}

// Scan probes the usual local node endpoints and returns the first that
// answers.
func (s *Service) Scan(ctx context.Context) ScanResult {
	for _, candidate := range s.candidates {
		node, err := erg.NewErgNode(s.clients, candidate, "")
		if err != nil {
			continue
		}
		probeCtx, cancel := context.WithTimeout(ctx, scanTimeout)
		info, err := node.Info(probeCtx)
		cancel()
		if err != nil {
			continue
		}
		return ScanResult{
			Found:    true,
			Endpoint: node.Endpoint(),
			Info: &NodeSummary{
				Name:       info.Name,
				Version:    info.Version,
				FullHeight: info.FullHeight,
				Network:    info.Network,
			},
		}
	}
	return ScanResult{}
}
