package erg

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBoxA  = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	testBoxB  = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	testToken = "cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc"
)

func newTestNode(t *testing.T, mux *http.ServeMux) *ErgNode {
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	node, err := NewErgNode(NewHTTPClients(5*time.Second, 0), srv.URL, "secret")
	require.NoError(t, err)
	return node
}

func TestNormalizeEndpoint(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{"Empty", "   ", ""},
		{"NoScheme", "127.0.0.1:9053", "http://127.0.0.1:9053"},
		{"TrailingSlashes", "https://node.example//", "https://node.example"},
		{"UpperScheme", "HTTP://node:9053/", "HTTP://node:9053"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeEndpoint(tc.input))
		})
	}

	_, err := NewErgNode(HTTPClients{}, "", "")
	assert.ErrorIs(t, err, ErrInvalidEndpoint)
}

func TestInfoSendsApiKey(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("api_key"))
		fmt.Fprint(w, `{"name":"ergo-node","appVersion":"5.0.12","fullHeight":1200000,"network":"mainnet"}`)
	})
	node := newTestNode(t, mux)

	info, err := node.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1200000, info.FullHeight)
	assert.Equal(t, "mainnet", info.Network)
	assert.Equal(t, "5.0.12", info.Version)
}

func TestNodeErrorStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/wallet/addresses", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":403,"reason":"Forbidden","detail":"Wrong api key"}`)
	})
	node := newTestNode(t, mux)

	_, err := node.WalletAddresses(context.Background())
	require.Error(t, err)

	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, http.StatusForbidden, nodeErr.StatusCode)
	assert.Contains(t, nodeErr.Body, "Wrong api key")
}

func TestWalletBoxesKeepWideAmounts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/wallet/boxes/unspent", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0", r.URL.Query().Get("minConfirmations"))
		fmt.Fprintf(w, `[{"address":"9fAddr","box":{"boxId":"%s","value":5000000000,"assets":[{"tokenId":"%s","amount":9007199254740993}]}}]`, testBoxA, testToken)
	})
	node := newTestNode(t, mux)

	boxes, err := node.WalletBoxes(context.Background())
	require.NoError(t, err)
	require.Len(t, boxes, 1)
	assert.Equal(t, "9fAddr", boxes[0].Address)
	assert.Equal(t, "5000000000", boxes[0].Box.Value.String())
	assert.Equal(t, "9007199254740993", boxes[0].Box.TokenAmount(testToken).String())
	assert.True(t, boxes[0].HasTokens())
}

func TestUnspentBoxByTokenID(t *testing.T) {
	testCases := []struct {
		name    string
		spent   map[string]bool
		wantBox string
		wantErr error
	}{
		{"NewestUnspent", map[string]bool{}, testBoxA, nil},
		{"SkipsSpentCandidate", map[string]bool{testBoxA: true}, testBoxB, nil},
		{"AllSpent", map[string]bool{testBoxA: true, testBoxB: true}, "", ErrAllCandidatesSpent},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/blockchain/box/unspent/byTokenId/"+testToken, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "5", r.URL.Query().Get("limit"))
				assert.Equal(t, "desc", r.URL.Query().Get("sortDirection"))
				fmt.Fprintf(w, `[{"boxId":"%s","value":1000000},{"boxId":"%s","value":2000000}]`, testBoxA, testBoxB)
			})
			mux.HandleFunc("/utxo/withPool/byId/", func(w http.ResponseWriter, r *http.Request) {
				id := strings.TrimPrefix(r.URL.Path, "/utxo/withPool/byId/")
				if tc.spent[id] {
					fmt.Fprintf(w, `{"boxId":"%s","value":1,"spentTransactionId":"ffff"}`, id)
					return
				}
				fmt.Fprintf(w, `{"boxId":"%s","value":42}`, id)
			})
			node := newTestNode(t, mux)

			box, err := node.UnspentBoxByTokenID(context.Background(), testToken)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantBox, box.BoxID)
			assert.Equal(t, "42", box.Value.String())
		})
	}
}

func TestUnspentBoxByTokenIDEmpty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/blockchain/box/unspent/byTokenId/"+testToken, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	node := newTestNode(t, mux)

	_, err := node.UnspentBoxByTokenID(context.Background(), testToken)
	assert.ErrorIs(t, err, ErrNoUnspentBox)
}

func TestBoxBytesFallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/utxo/byIdBinary/"+testBoxA, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/utxo/withPool/byIdBinary/"+testBoxA, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"boxId":"%s","bytes":"80a8d6b907"}`, testBoxA)
	})
	node := newTestNode(t, mux)

	b, err := node.BoxBytes(context.Background(), testBoxA)
	require.NoError(t, err)
	assert.Equal(t, "80a8d6b907", b)
	assert.True(t, IsHexBytes(b))

	_, err = node.BoxBytes(context.Background(), testBoxB)
	assert.ErrorIs(t, err, ErrMissingBytes)
}

func TestErgoTreeToAddressPayloads(t *testing.T) {
	var seen []string
	mux := http.NewServeMux()
	mux.HandleFunc("/utils/ergoTreeToAddress", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen = append(seen, string(body))
		if strings.Contains(string(body), `"ergoTree"`) {
			fmt.Fprint(w, `{"address":"9hTree"}`)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":400}`)
	})
	node := newTestNode(t, mux)

	addr, err := node.ErgoTreeToAddress(context.Background(), "0008cd")
	require.NoError(t, err)
	assert.Equal(t, "9hTree", addr)
	require.Len(t, seen, 3)
	assert.Equal(t, `"0008cd"`, seen[0])
	assert.JSONEq(t, `{"tree":"0008cd"}`, seen[1])

	addr, err = node.BoxAddress(context.Background(), Box{Address: "9known"})
	require.NoError(t, err)
	assert.Equal(t, "9known", addr)

	_, err = node.BoxAddress(context.Background(), Box{BoxID: testBoxA})
	assert.ErrorIs(t, err, ErrMissingErgoTree)
}

func TestGenerateUnsignedFallsBackOnNoneGet(t *testing.T) {
	var calls []map[string]json.RawMessage
	mux := http.NewServeMux()
	mux.HandleFunc("/wallet/transaction/generateUnsigned", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]json.RawMessage
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		calls = append(calls, body)
		if _, ok := body["inputsRaw"]; ok {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":400,"reason":"bad.request","detail":"Malformed request: None.get"}`)
			return
		}
		fmt.Fprintf(w, `{"id":"tx","inputs":[{"boxId":"%s"}],"dataInputs":[],"outputs":[{"value":1000000,"assets":[{"tokenId":"%s","amount":12345678901234567}]}]}`, testBoxA, testToken)
	})
	node := newTestNode(t, mux)

	unsigned, err := node.GenerateUnsigned(context.Background(), TxRequest{
		Requests: []PaymentRequest{{
			Address: "9addr",
			Value:   NewAmount(1000000),
			Assets:  []Token{{TokenID: testToken, Amount: NewAmount(5)}},
		}},
		Fee:           NewAmount(1000000),
		InputIDs:      []string{testBoxA},
		InputsRaw:     []string{"00"},
		DataInputIDs:  []string{},
		DataInputsRaw: []string{},
	})
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "1000000", string(calls[0]["fee"]))
	assert.JSONEq(t, fmt.Sprintf(`["%s"]`, testBoxA), string(calls[1]["inputs"]))
	assert.Equal(t, []string{testBoxA}, unsigned.InputIDs())

	// the wide token amount is preserved and written back as a bare literal
	out, err := MarshalNodePayload(unsigned)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"amount":12345678901234567`)
}

func TestGenerateUnsignedOtherErrorNoRetry(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/wallet/transaction/generateUnsigned", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"detail":"not enough boxes to meet ERG needs 5000000 (found only 100)"}`)
	})
	node := newTestNode(t, mux)

	_, err := node.GenerateUnsigned(context.Background(), TxRequest{Fee: NewAmount(1000000)})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.False(t, IsNoneGetError(err))
}

func TestReorderInputsAndExtension(t *testing.T) {
	tx := UnsignedTx{
		"inputs": []interface{}{
			map[string]interface{}{"boxId": "w1"},
			map[string]interface{}{"boxId": "bank"},
			map[string]interface{}{"boxId": "extra"},
			map[string]interface{}{"boxId": "mint"},
			map[string]interface{}{"boxId": "buyback"},
		},
		"dataInputs": []interface{}{
			map[string]interface{}{"boxId": "lp"},
			map[string]interface{}{"boxId": "oracle"},
		},
	}

	require.NoError(t, tx.ReorderInputs([]string{"mint", "bank", "buyback", "w1"}, []string{"oracle", "lp"}))
	assert.Equal(t, []string{"mint", "bank", "buyback", "w1", "extra"}, tx.InputIDs())
	assert.Equal(t, []string{"oracle", "lp"}, tx.DataInputIDs())

	require.NoError(t, tx.SetExtension("buyback", map[string]string{"0": "0402"}))
	buyback := tx["inputs"].([]interface{})[2].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"0": "0402"}, buyback["extension"])

	assert.ErrorIs(t, tx.SetExtension("missing", nil), ErrMissingInput)
	assert.ErrorIs(t, tx.ReorderInputs([]string{"nope"}, nil), ErrUnmappedInput)
	assert.ErrorIs(t, tx.ReorderInputs(nil, []string{"tracking"}), ErrUnmappedDataInput)
}

func TestSignAndBroadcast(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/wallet/transaction/sign", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]json.RawMessage
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body, "tx")
		assert.JSONEq(t, `["00"]`, string(body["inputsRaw"]))
		fmt.Fprint(w, `{"id":"signed-id","inputs":[]}`)
	})
	mux.HandleFunc("/transactions", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `"signed-id"`)
	})
	node := newTestNode(t, mux)

	signed, err := node.Sign(context.Background(), UnsignedTx{"inputs": []interface{}{}}, []string{"00"}, []string{})
	require.NoError(t, err)

	id, err := node.Broadcast(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, "signed-id", id)
}

func TestAssertUnspent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/utxo/withPool/byId/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/utxo/withPool/byId/")
		switch id {
		case testBoxA:
			fmt.Fprintf(w, `{"boxId":"%s","value":1,"spentTransactionId":"abc"}`, id)
		case testBoxB:
			fmt.Fprintf(w, `{"boxId":"%s","value":1}`, id)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	node := newTestNode(t, mux)

	assert.NoError(t, node.AssertUnspent(context.Background(), []string{testBoxB, "unknown"}))

	err := node.AssertUnspent(context.Background(), []string{testBoxA, testBoxB})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadySpent)
	assert.Contains(t, err.Error(), testBoxA)
	assert.Contains(t, err.Error(), "already spent")
}
