package erg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

var (
	getInfo              = "/info"
	getWalletAddresses   = "/wallet/addresses"
	getWalletBoxes       = "/wallet/boxes/unspent?minConfirmations=0&maxConfirmations=-1&minInclusionHeight=0&maxInclusionHeight=-1"
	getUnspentByTokenId  = "/blockchain/box/unspent/byTokenId/"
	getBlockchainBox     = "/blockchain/box/byId/"
	getPoolBox           = "/utxo/withPool/byId/"
	getBoxBytes          = "/utxo/byIdBinary/"
	getPoolBoxBytes      = "/utxo/withPool/byIdBinary/"
	getToken             = "/blockchain/token/byId/"
	postErgoTreeToAddr   = "/utils/ergoTreeToAddress"
	postGenerateUnsigned = "/wallet/transaction/generateUnsigned"
	postSignTx           = "/wallet/transaction/sign"
	postTransactions     = "/transactions"

	// candidateLimit is how many unspent boxes are considered per token id
	// when the newest one is already spent in the mempool.
	candidateLimit = 5

	noneGetSignature = "Malformed request: None.get"
	hexPattern       = regexp.MustCompile(`^[0-9a-fA-F]+$`)
)

var (
	ErrNoUnspentBox       = errors.New("no unspent box found")
	ErrAllCandidatesSpent = errors.New("all candidate boxes are spent in mempool")
	ErrAlreadySpent       = errors.New("already spent in mempool")
	ErrMissingErgoTree    = errors.New("box is missing ergoTree")
	ErrUnresolvedAddress  = errors.New("unable to resolve box address")
	ErrMissingBytes       = errors.New("unable to fetch box bytes")
	ErrInvalidEndpoint    = errors.New("invalid node endpoint")
)

// NodeError is a non-2xx answer from the node.
type NodeError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s %s failed: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// IsNoneGetError reports whether err carries the node's "Malformed request:
// None.get" rejection, which one node version returns when it expects box
// ids instead of raw bytes.
func IsNoneGetError(err error) bool {
	return err != nil && strings.Contains(err.Error(), noneGetSignature)
}

// SpentBoxesError lists boxes found already spent in the mempool.
type SpentBoxesError struct {
	BoxIDs []string
}

func (e *SpentBoxesError) Error() string {
	return fmt.Sprintf("input boxes already spent in mempool: %s - refresh and retry", strings.Join(e.BoxIDs, ", "))
}

func (e *SpentBoxesError) Unwrap() error {
	return ErrAlreadySpent
}

// HTTPClients holds the transports used for node reads and writes. Writes
// never retry at the transport level.
type HTTPClients struct {
	Read  *retryablehttp.Client
	Write *retryablehttp.Client
}

// NewHTTPClients builds the retrying read client and the single-shot write
// client shared by every node and explorer instance.
func NewHTTPClients(timeout time.Duration, retryMax int) HTTPClients {
	return HTTPClients{
		Read:  newRetryClient(timeout, retryMax),
		Write: newRetryClient(timeout, 0),
	}
}

func newRetryClient(timeout time.Duration, retryMax int) *retryablehttp.Client {
	t := &http.Transport{
		Dial: (&net.Dialer{
			Timeout: 3 * time.Second,
		}).Dial,
		MaxIdleConns:        100,
		MaxConnsPerHost:     100,
		MaxIdleConnsPerHost: 100,
		TLSHandshakeTimeout: 3 * time.Second,
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Transport = t
	retryClient.HTTPClient.Timeout = timeout
	retryClient.Logger = nil
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 250 * time.Millisecond
	retryClient.RetryMax = retryMax
	retryClient.RequestLogHook = func(_ retryablehttp.Logger, r *http.Request, i int) {
		if i > 0 {
			zap.L().Info("node request failed, retrying...",
				zap.String("url", r.URL.Path),
				zap.Int("retryCount", i),
			)
		}
	}
	// return the last response instead of a generic "giving up" error so the
	// node's own error text reaches the classifier
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return retryClient
}

// NormalizeEndpoint adds a scheme when missing and strips trailing slashes.
func NormalizeEndpoint(endpoint string) string {
	normalized := strings.TrimSpace(endpoint)
	if normalized == "" {
		return ""
	}
	lower := strings.ToLower(normalized)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		normalized = "http://" + normalized
	}
	return strings.TrimRight(normalized, "/")
}

// ErgNode talks to a single Ergo node's REST API.
type ErgNode struct {
	reader *retryablehttp.Client
	writer *retryablehttp.Client
	url    *url.URL
	apiKey string
}

func NewErgNode(clients HTTPClients, endpoint, apiKey string) (*ErgNode, error) {
	normalized := NormalizeEndpoint(endpoint)
	if normalized == "" {
		return nil, ErrInvalidEndpoint
	}
	u, err := url.Parse(normalized)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEndpoint, err.Error())
	}

	return &ErgNode{
		reader: clients.Read,
		writer: clients.Write,
		url:    u,
		apiKey: apiKey,
	}, nil
}

// Endpoint returns the normalized base URL.
func (n *ErgNode) Endpoint() string {
	return n.url.String()
}

func (n *ErgNode) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := MarshalNodePayload(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, n.url.String()+path, body)
	if err != nil {
		return nil, fmt.Errorf("error creating node %s %s request - %w", method, path, err)
	}
	if n.apiKey != "" {
		req.Header.Set("api_key", n.apiKey)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := n.reader
	if method != http.MethodGet {
		client = n.writer
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error calling node %s %s - %w", method, path, err)
	}
	defer resp.Body.Close()

	ret, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading node %s %s response - %w", method, path, err)
	}

	// Some was wrong, report the error
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &NodeError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(ret)}
	}

	return ret, nil
}

func (n *ErgNode) getJSON(ctx context.Context, path string, v interface{}) error {
	body, err := n.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := decodeLossless(body, v); err != nil {
		return fmt.Errorf("error unmarshalling node GET %s response - %w", path, err)
	}
	return nil
}

func (n *ErgNode) getResult(ctx context.Context, path string) (gjson.Result, error) {
	body, err := n.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%w: node GET %s", ErrInvalidJSON, path)
	}
	return gjson.ParseBytes(body), nil
}

func (n *ErgNode) Info(ctx context.Context) (NodeInfo, error) {
	r, err := n.getResult(ctx, getInfo)
	if err != nil {
		return NodeInfo{}, err
	}
	return nodeInfoFromResult(r), nil
}

func (n *ErgNode) WalletAddresses(ctx context.Context) ([]string, error) {
	r, err := n.getResult(ctx, getWalletAddresses)
	if err != nil {
		return nil, err
	}
	if !r.IsArray() {
		r = r.Get("addresses")
	}

	var addresses []string
	for _, a := range r.Array() {
		if s := a.String(); s != "" {
			addresses = append(addresses, s)
		}
	}
	return addresses, nil
}

func (n *ErgNode) WalletBoxes(ctx context.Context) ([]WalletBox, error) {
	r, err := n.getResult(ctx, getWalletBoxes)
	if err != nil {
		return nil, err
	}
	if !r.IsArray() {
		r = r.Get("boxes")
	}
	if !r.IsArray() {
		return nil, nil
	}

	var boxes []WalletBox
	if err := decodeLossless([]byte(r.Raw), &boxes); err != nil {
		return nil, fmt.Errorf("error unmarshalling wallet boxes - %w", err)
	}
	return boxes, nil
}

// BoxWithPool looks a box up through the mempool-aware endpoint.
func (n *ErgNode) BoxWithPool(ctx context.Context, boxID string) (PooledBox, error) {
	r, err := n.getResult(ctx, getPoolBox+boxID)
	if err != nil {
		return PooledBox{}, err
	}

	var pooled PooledBox
	inner := r
	if b := r.Get("box"); b.IsObject() {
		inner = b
	}
	if err := pooled.Box.fromResult(inner); err != nil {
		return PooledBox{}, err
	}
	pooled.SpentTransactionID = r.Get("spentTransactionId").String()
	if pooled.SpentTransactionID == "" {
		pooled.SpentTransactionID = pooled.Box.SpentTransactionID
	}
	return pooled, nil
}

// BoxByID reads a box from the blockchain index, falling back to the
// mempool-aware lookup.
func (n *ErgNode) BoxByID(ctx context.Context, boxID string) (Box, error) {
	var box Box
	if err := n.getJSON(ctx, getBlockchainBox+boxID, &box); err == nil {
		return box, nil
	}

	pooled, err := n.BoxWithPool(ctx, boxID)
	if err != nil {
		return Box{}, err
	}
	return pooled.Box, nil
}

// UnspentBoxByTokenID returns the newest unspent box holding tokenID that is
// not already consumed by a pending transaction.
func (n *ErgNode) UnspentBoxByTokenID(ctx context.Context, tokenID string) (Box, error) {
	var candidates []Box

	path := fmt.Sprintf("%s%s?offset=0&limit=%d&sortDirection=desc", getUnspentByTokenId, tokenID, candidateLimit)
	if err := n.getJSON(ctx, path, &candidates); err != nil {
		return Box{}, err
	}
	if len(candidates) == 0 {
		return Box{}, fmt.Errorf("%w for token %s", ErrNoUnspentBox, tokenID)
	}

	for _, candidate := range candidates {
		if candidate.BoxID == "" {
			continue
		}
		pooled, err := n.BoxWithPool(ctx, candidate.BoxID)
		if err == nil && pooled.Spent() {
			continue
		}
		if err == nil && pooled.Box.BoxID != "" {
			return pooled.Box, nil
		}
		box, err := n.BoxByID(ctx, candidate.BoxID)
		if err != nil {
			return candidate, nil
		}
		return box, nil
	}

	return Box{}, fmt.Errorf("%w for token %s", ErrAllCandidatesSpent, tokenID)
}

// BoxBytes returns the serialized box, falling back to the mempool-aware
// endpoint for boxes created by pending transactions.
func (n *ErgNode) BoxBytes(ctx context.Context, boxID string) (string, error) {
	var s Serialized
	if err := n.getJSON(ctx, getBoxBytes+boxID, &s); err == nil && s.Bytes != "" {
		return s.Bytes, nil
	}

	s = Serialized{}
	if err := n.getJSON(ctx, getPoolBoxBytes+boxID, &s); err != nil {
		return "", fmt.Errorf("%w for box %s - %s", ErrMissingBytes, boxID, err.Error())
	}
	if s.Bytes == "" {
		return "", fmt.Errorf("%w for box %s", ErrMissingBytes, boxID)
	}
	return s.Bytes, nil
}

// IsHexBytes reports whether s is a non-empty hex string.
func IsHexBytes(s string) bool {
	return hexPattern.MatchString(s)
}

func (n *ErgNode) TokenInfo(ctx context.Context, tokenID string) (TokenInfo, error) {
	r, err := n.getResult(ctx, getToken+tokenID)
	if err != nil {
		return TokenInfo{}, err
	}
	return tokenInfoFromResult(r), nil
}

// ErgoTreeToAddress resolves an ergo tree to an address. Node versions
// disagree on the request body, so the raw tree, {"tree"} and {"ergoTree"}
// are tried in order.
func (n *ErgNode) ErgoTreeToAddress(ctx context.Context, tree string) (string, error) {
	payloads := []interface{}{
		tree,
		map[string]string{"tree": tree},
		map[string]string{"ergoTree": tree},
	}

	var errs *multierror.Error
	for _, payload := range payloads {
		body, err := n.do(ctx, http.MethodPost, postErgoTreeToAddr, payload)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		r := gjson.ParseBytes(body)
		if r.Type == gjson.String && r.Str != "" {
			return r.Str, nil
		}
		if addr := r.Get("address").String(); addr != "" {
			return addr, nil
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return "", fmt.Errorf("%w - %s", ErrUnresolvedAddress, err.Error())
	}
	return "", ErrUnresolvedAddress
}

// BoxAddress returns the box's address, resolving its ergo tree if needed.
func (n *ErgNode) BoxAddress(ctx context.Context, box Box) (string, error) {
	if box.Address != "" {
		return box.Address, nil
	}
	if box.ErgoTree == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingErgoTree, box.BoxID)
	}
	return n.ErgoTreeToAddress(ctx, box.ErgoTree)
}

// AssertUnspent re-checks every box against the mempool. Boxes whose status
// cannot be read are skipped.
func (n *ErgNode) AssertUnspent(ctx context.Context, boxIDs []string) error {
	var spent []string
	for _, boxID := range boxIDs {
		if boxID == "" {
			continue
		}
		pooled, err := n.BoxWithPool(ctx, boxID)
		if err != nil {
			zap.L().Debug("mempool status unavailable", zap.String("box_id", boxID), zap.Error(err))
			continue
		}
		if pooled.Spent() {
			spent = append(spent, boxID)
		}
	}
	if len(spent) > 0 {
		return &SpentBoxesError{BoxIDs: spent}
	}
	return nil
}
