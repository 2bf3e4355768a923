package ledgerclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/ratelimit"

	"github.com/x42protocol/xserverd/internal/core/ports"
	"github.com/x42protocol/xserverd/pkg/util"
)

// requestsPerSecond caps calls to the node API. The wallet endpoints share
// the chain's RPC worker pool with block validation.
const requestsPerSecond = 50

// Client talks to the x42 full node's REST API. It is the only component
// allowed to read chain state or broadcast transactions.
type Client struct {
	baseURL string
	limiter ratelimit.Limiter
}

// NewClient returns a LedgerClient bound to the node at baseURL, for example
// http://127.0.0.1:42220.
func NewClient(baseURL string) ports.LedgerClient {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		limiter: ratelimit.New(requestsPerSecond),
	}
}

type blockchainInfoResponse struct {
	Blocks               int64 `json:"blocks"`
	Headers              int64 `json:"headers"`
	InitialBlockDownload bool  `json:"initialblockdownload"`
}

func (c *Client) GetBlockchainInfo(ctx context.Context) (*ports.BlockchainInfo, error) {
	var resp blockchainInfoResponse
	if err := c.get(ctx, "/api/blockchain/getblockchaininfo", &resp); err != nil {
		return nil, err
	}
	return &ports.BlockchainInfo{
		Blocks:               resp.Blocks,
		Headers:              resp.Headers,
		InitialBlockDownload: resp.InitialBlockDownload,
	}, nil
}

func (c *Client) GetAddressBalance(
	ctx context.Context, address string, minConf int64,
) (decimal.Decimal, error) {
	var resp struct {
		Balance decimal.Decimal `json:"balance"`
	}
	path := fmt.Sprintf(
		"/api/blockchain/getaddressbalance?address=%s&minConf=%d",
		url.QueryEscape(address), minConf,
	)
	if err := c.get(ctx, path, &resp); err != nil {
		return decimal.Zero, err
	}
	return resp.Balance, nil
}

type rawTransactionResponse struct {
	TxId          string `json:"txid"`
	BlockHeight   int64  `json:"blockheight"`
	Confirmations int64  `json:"confirmations"`
	Vin           []struct {
		TxId string `json:"txid"`
		Vout uint32 `json:"vout"`
	} `json:"vin"`
	Vout []struct {
		N            uint32          `json:"n"`
		Value        decimal.Decimal `json:"value"`
		ScriptPubKey struct {
			Addresses []string `json:"addresses"`
		} `json:"scriptPubKey"`
	} `json:"vout"`
}

func (r rawTransactionResponse) toPort() *ports.RawTransaction {
	tx := &ports.RawTransaction{
		TxId:          r.TxId,
		BlockHeight:   r.BlockHeight,
		Confirmations: r.Confirmations,
	}
	for _, in := range r.Vin {
		tx.Inputs = append(tx.Inputs, ports.TxInput{TxId: in.TxId, Vout: in.Vout})
	}
	for _, out := range r.Vout {
		tx.Outputs = append(tx.Outputs, ports.TxOutput{
			N:         out.N,
			Amount:    out.Value,
			Addresses: out.ScriptPubKey.Addresses,
		})
	}
	return tx
}

func (c *Client) GetRawTransaction(
	ctx context.Context, txId string,
) (*ports.RawTransaction, error) {
	var resp rawTransactionResponse
	path := fmt.Sprintf(
		"/api/blockchain/getrawtransaction?trxid=%s&verbose=true",
		url.QueryEscape(txId),
	)
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.toPort(), nil
}

func (c *Client) DecodeRawTransaction(
	ctx context.Context, txHex string,
) (*ports.RawTransaction, error) {
	body, err := json.Marshal(map[string]string{"rawHex": txHex})
	if err != nil {
		return nil, err
	}
	var resp rawTransactionResponse
	if err := c.post(ctx, "/api/blockchain/decoderawtransaction", string(body), &resp); err != nil {
		return nil, err
	}
	return resp.toPort(), nil
}

func (c *Client) SendRawTransaction(ctx context.Context, txHex string) (string, error) {
	body, err := json.Marshal(map[string]string{"hex": txHex})
	if err != nil {
		return "", err
	}
	var resp struct {
		TransactionId string `json:"transactionId"`
	}
	if err := c.post(ctx, "/api/blockchain/sendrawtransaction", string(body), &resp); err != nil {
		return "", err
	}
	return resp.TransactionId, nil
}

func (c *Client) SignMessage(ctx context.Context, address, message string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"externalAddress": address,
		"message":         message,
	})
	if err != nil {
		return "", err
	}
	var resp struct {
		Signature string `json:"signature"`
	}
	if err := c.post(ctx, "/api/wallet/signmessage", string(body), &resp); err != nil {
		return "", err
	}
	return resp.Signature, nil
}

func (c *Client) VerifyMessage(
	ctx context.Context, address, signature, message string,
) (bool, error) {
	body, err := json.Marshal(map[string]string{
		"externalAddress": address,
		"signature":       signature,
		"message":         message,
	})
	if err != nil {
		return false, err
	}
	var valid bool
	if err := c.post(ctx, "/api/wallet/verifymessage", string(body), &valid); err != nil {
		return false, err
	}
	return valid, nil
}

func (c *Client) GetAddressIndexerTip(ctx context.Context) (int64, error) {
	var resp struct {
		TipHeight int64 `json:"tipHeight"`
	}
	if err := c.get(ctx, "/api/blockchain/getaddressindexertip", &resp); err != nil {
		return 0, err
	}
	return resp.TipHeight, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.call(ctx, http.MethodGet, path, "", out)
}

func (c *Client) post(ctx context.Context, path, body string, out interface{}) error {
	return c.call(ctx, http.MethodPost, path, body, out)
}

func (c *Client) call(ctx context.Context, method, path, body string, out interface{}) error {
	c.limiter.Take()

	status, resp, err := util.NewHTTPRequest(
		ctx, method, c.baseURL+path, body,
		map[string]string{"Content-Type": "application/json"},
	)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("node %s: %s", path, resp)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal([]byte(resp), out)
}
