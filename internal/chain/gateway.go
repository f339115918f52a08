// Package chain talks to the article publisher contract.
package chain

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ales-api/internal/config"
	"github.com/ales-api/internal/models"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

//go:embed abi/ArticlePublisher.json
var publisherABIJSON []byte

// PublisherABI is the parsed contract interface
var PublisherABI = mustParseABI(publisherABIJSON)

func mustParseABI(raw []byte) abi.ABI {
	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("chain: invalid embedded ABI: %v", err))
	}
	return parsed
}

// Contract method names
const (
	methodPublish      = "publishArticle"
	methodBuyArticle   = "buyArticle"
	methodBuyCoffee    = "buyCoffee"
	methodArticles     = "articles"
	methodArticleCount = "articleCount"
)

// Connector opens signer-bound contract handles
type Connector interface {
	Connect(ctx context.Context) (Contract, error)
}

// Contract is a signer-bound handle on the publisher contract
type Contract interface {
	Address() common.Address
	ChainID() *big.Int
	Publish(ctx context.Context, title, contentRef, price string, isFree bool) (*models.TxReceipt, error)
	Purchase(ctx context.Context, articleID uint64, amount string) (*models.TxReceipt, error)
	Tip(ctx context.Context, articleID uint64, amount string) (*models.TxReceipt, error)
	FetchOne(ctx context.Context, articleID uint64) (*models.Article, error)
	FetchCount(ctx context.Context) (uint64, error)
	Receipt(ctx context.Context, txHash string) (*models.TxReceipt, error)
	Close()
}

// BoundContract is the subset of bind.BoundContract the handle uses
type BoundContract interface {
	Call(opts *bind.CallOpts, results *[]interface{}, method string, params ...interface{}) error
	Transact(opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error)
}

// TxLookup reads the state of a transaction by hash
type TxLookup interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
}

// MineFunc waits until tx is included and returns its receipt
type MineFunc func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)

// ethConnector dials the RPC node on every Connect
type ethConnector struct {
	cfg      config.ChainConfig
	contract common.Address
	key      *ecdsa.PrivateKey
	log      zerolog.Logger
}

// NewConnector builds a connector from configuration. A missing or
// unreadable key is not an error here: Connect reports the provider as
// unavailable instead.
func NewConnector(cfg config.ChainConfig, log zerolog.Logger) Connector {
	c := &ethConnector{
		cfg:      cfg,
		contract: common.HexToAddress(cfg.ContractAddress),
		log:      log.With().Str("component", "chain").Logger(),
	}

	if !cfg.HasSigner() {
		c.log.Warn().Msg("No signer key configured")
		return c
	}
	key, err := loadKey(cfg)
	if err != nil {
		c.log.Warn().Err(err).Msg("Signer key could not be loaded")
	}
	c.key = key
	return c
}

func loadKey(cfg config.ChainConfig) (*ecdsa.PrivateKey, error) {
	if cfg.PrivateKey != "" {
		return crypto.HexToECDSA(cfg.PrivateKey)
	}
	raw, err := os.ReadFile(cfg.KeystorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore: %w", err)
	}
	k, err := keystore.DecryptKey(raw, cfg.KeystorePassword)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt keystore: %w", err)
	}
	return k.PrivateKey, nil
}

// Connect dials the node, resolves the chain id and binds a transactor
func (c *ethConnector) Connect(ctx context.Context) (Contract, error) {
	if c.key == nil || c.cfg.RPCURL == "" {
		return nil, models.ErrProviderUnavailable
	}

	client, err := ethclient.DialContext(ctx, c.cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}

	auth, err := bind.NewKeyedTransactorWithChainID(c.key, chainID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}

	bound := bind.NewBoundContract(c.contract, PublisherABI, client, client, client)
	mine := func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
		return bind.WaitMined(ctx, client, tx)
	}

	c.log.Debug().
		Str("signer", auth.From.Hex()).
		Str("chain_id", chainID.String()).
		Msg("Contract handle connected")

	h := NewHandle(bound, mine, auth, chainID, c.cfg.GasLimit, c.log)
	h.lookup = client
	h.closer = client.Close
	return h, nil
}

// Handle implements Contract on top of a bound contract
type Handle struct {
	contract BoundContract
	mine     MineFunc
	auth     *bind.TransactOpts
	chainID  *big.Int
	gasLimit uint64
	lookup   TxLookup
	closer   func()
	log      zerolog.Logger
}

// NewHandle wires a handle from its parts
func NewHandle(contract BoundContract, mine MineFunc, auth *bind.TransactOpts, chainID *big.Int, gasLimit uint64, log zerolog.Logger) *Handle {
	return &Handle{
		contract: contract,
		mine:     mine,
		auth:     auth,
		chainID:  chainID,
		gasLimit: gasLimit,
		log:      log,
	}
}

// Close releases the underlying RPC client
func (h *Handle) Close() {
	if h.closer != nil {
		h.closer()
	}
}

// Address returns the signer address
func (h *Handle) Address() common.Address {
	return h.auth.From
}

// ChainID returns the chain the handle is bound to
func (h *Handle) ChainID() *big.Int {
	return h.chainID
}

// Publish submits publishArticle and waits for confirmation. The price is
// zero for free articles and for an empty price field.
func (h *Handle) Publish(ctx context.Context, title, contentRef, price string, isFree bool) (*models.TxReceipt, error) {
	wei := new(big.Int)
	if !isFree {
		parsed, err := ParseEther(price)
		if err != nil {
			return nil, err
		}
		wei = parsed
	}

	return h.transact(ctx, nil, methodPublish, title, contentRef, wei, isFree, h.auth.From)
}

// Purchase submits a payable buyArticle carrying amount
func (h *Handle) Purchase(ctx context.Context, articleID uint64, amount string) (*models.TxReceipt, error) {
	value, err := ParseEther(amount)
	if err != nil {
		return nil, err
	}
	return h.transact(ctx, value, methodBuyArticle, new(big.Int).SetUint64(articleID))
}

// Tip submits a payable buyCoffee carrying amount
func (h *Handle) Tip(ctx context.Context, articleID uint64, amount string) (*models.TxReceipt, error) {
	value, err := ParseEther(amount)
	if err != nil {
		return nil, err
	}
	return h.transact(ctx, value, methodBuyCoffee, new(big.Int).SetUint64(articleID), value)
}

// FetchOne reads one article snapshot
func (h *Handle) FetchOne(ctx context.Context, articleID uint64) (*models.Article, error) {
	if articleID < 1 {
		return nil, fmt.Errorf("article %d: %w", articleID, models.ErrNotFound)
	}

	var out []interface{}
	err := h.contract.Call(h.callOpts(ctx), &out, methodArticles, new(big.Int).SetUint64(articleID))
	if err != nil {
		if isRevert(err) {
			return nil, fmt.Errorf("article %d: %w", articleID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch article %d: %w", articleID, err)
	}
	if len(out) != 5 {
		return nil, fmt.Errorf("unexpected articles() output length %d", len(out))
	}

	title, _ := out[0].(string)
	contentHash, _ := out[1].(string)
	price, _ := out[2].(*big.Int)
	isFree, _ := out[3].(bool)
	author, _ := out[4].(common.Address)

	// Unset mapping slots decode to the zero value
	if author == (common.Address{}) {
		return nil, fmt.Errorf("article %d: %w", articleID, models.ErrNotFound)
	}
	if price == nil {
		price = new(big.Int)
	}

	return &models.Article{
		ID:          articleID,
		Title:       title,
		ContentHash: contentHash,
		Price:       FormatEther(price),
		PriceWei:    price.String(),
		IsFree:      isFree,
		Author:      author.Hex(),
	}, nil
}

// FetchCount reads the number of published articles
func (h *Handle) FetchCount(ctx context.Context) (uint64, error) {
	var out []interface{}
	if err := h.contract.Call(h.callOpts(ctx), &out, methodArticleCount); err != nil {
		return 0, fmt.Errorf("failed to fetch article count: %w", err)
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("unexpected articleCount() output length %d", len(out))
	}
	count, ok := out[0].(*big.Int)
	if !ok || count == nil {
		return 0, fmt.Errorf("unexpected articleCount() output type %T", out[0])
	}
	if !count.IsUint64() {
		return 0, fmt.Errorf("article count %s out of range", count)
	}
	return count.Uint64(), nil
}

// Receipt reports the outcome of a previously broadcast transaction. A
// transaction the node still knows but has not mined is pending; one it no
// longer knows was dropped and counts as rejected.
func (h *Handle) Receipt(ctx context.Context, txHash string) (*models.TxReceipt, error) {
	if h.lookup == nil {
		return nil, models.ErrProviderUnavailable
	}
	hash := common.HexToHash(txHash)

	receipt, err := h.lookup.TransactionReceipt(ctx, hash)
	if err == nil {
		if receipt.Status == types.ReceiptStatusFailed {
			return nil, fmt.Errorf("%s: %w in block %d", txHash, models.ErrTransactionReverted, blockNumber(receipt))
		}
		return &models.TxReceipt{
			TxHash:      txHash,
			BlockNumber: blockNumber(receipt),
			GasUsed:     receipt.GasUsed,
		}, nil
	}
	if !errors.Is(err, ethereum.NotFound) {
		return nil, fmt.Errorf("failed to get receipt for %s: %w", txHash, err)
	}

	_, _, err = h.lookup.TransactionByHash(ctx, hash)
	switch {
	case err == nil:
		return nil, &models.PendingTxError{TxHash: txHash, Err: errors.New("not yet mined")}
	case errors.Is(err, ethereum.NotFound):
		return nil, fmt.Errorf("%s: %w: dropped by the node", txHash, models.ErrTransactionRejected)
	}
	return nil, fmt.Errorf("failed to get transaction %s: %w", txHash, err)
}

func (h *Handle) callOpts(ctx context.Context) *bind.CallOpts {
	return &bind.CallOpts{Context: ctx, From: h.auth.From}
}

func (h *Handle) transact(ctx context.Context, value *big.Int, method string, params ...interface{}) (*models.TxReceipt, error) {
	opts := *h.auth
	opts.Context = ctx
	opts.Value = value
	opts.GasLimit = h.gasLimit

	tx, err := h.contract.Transact(&opts, method, params...)
	if err != nil {
		if isRevert(err) {
			return nil, fmt.Errorf("%s: %w: %v", method, models.ErrTransactionReverted, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", method, ctxErr)
		}
		return nil, fmt.Errorf("%s: %w: %v", method, models.ErrTransactionRejected, err)
	}

	h.log.Info().
		Str("method", method).
		Str("tx_hash", tx.Hash().Hex()).
		Msg("Transaction submitted")

	// Broadcast; from here the outcome may be unknown but never "not sent"
	receipt, err := h.mine(ctx, tx)
	if err != nil {
		return nil, &models.PendingTxError{
			TxHash: tx.Hash().Hex(),
			Err:    fmt.Errorf("%s: waiting for %s: %w", method, tx.Hash().Hex(), err),
		}
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return nil, fmt.Errorf("%s: %w in block %d", method, models.ErrTransactionReverted, blockNumber(receipt))
	}

	h.log.Info().
		Str("method", method).
		Str("tx_hash", tx.Hash().Hex()).
		Uint64("block", blockNumber(receipt)).
		Uint64("gas_used", receipt.GasUsed).
		Msg("Transaction confirmed")

	return &models.TxReceipt{
		TxHash:      tx.Hash().Hex(),
		BlockNumber: blockNumber(receipt),
		GasUsed:     receipt.GasUsed,
	}, nil
}

func blockNumber(r *types.Receipt) uint64 {
	if r.BlockNumber == nil {
		return 0
	}
	return r.BlockNumber.Uint64()
}

// isRevert matches the node error for a reverted call or gas estimation
func isRevert(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}
