package polygon

// txcheck.go — read-only verification of CTF merge transactions.
//
// Every merge event the bot emits carries the tx hash of its on-chain
// mergePositions() call. This checker confirms the hash against a
// Polygon RPC node and prices the gas, so the dashboard can show the
// real fee next to the reported profit. It holds no keys and never
// sends a transaction.

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alejandrodnm/polywatch/internal/domain"
)

const (
	// CTF contract — mergePositions lives here
	ctfAddress = "0x4D97DCd97eC945f40cF65F87097ACe5EA0476045"

	// POL price fallback (USD) — used when CoinGecko is unreachable
	polPriceFallbackUSD = 0.12

	polPriceTTL = 15 * time.Minute
)

// Checker implements ports.TxChecker against a Polygon RPC node.
type Checker struct {
	client     *ethclient.Client
	httpClient *http.Client

	mu             sync.RWMutex
	cachedPOLPrice float64
	polPriceAt     time.Time
	settled        map[string]domain.TxStatus
}

// NewChecker connects to the given Polygon RPC endpoint.
func NewChecker(rpcURL string) (*Checker, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("polygon: dial rpc %s: %w", rpcURL, err)
	}
	return &Checker{
		client:     client,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		settled:    make(map[string]domain.TxStatus),
	}, nil
}

// Close releases the underlying RPC connection.
func (c *Checker) Close() {
	c.client.Close()
}

// MergeTxStatus resolves the on-chain state of a reported merge tx.
// Malformed or empty hashes come back as unknown without error; RPC
// failures return an error so the caller can retry later. Mined
// transactions are cached forever since their receipt never changes.
func (c *Checker) MergeTxStatus(ctx context.Context, txHash string) (domain.TxStatus, error) {
	status := domain.TxStatus{Hash: txHash, State: domain.TxUnknown}

	if !isTxHash(txHash) {
		return status, nil
	}

	c.mu.RLock()
	cached, ok := c.settled[txHash]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	hash := common.HexToHash(txHash)
	receipt, err := c.client.TransactionReceipt(ctx, hash)
	if err != nil {
		if !errors.Is(err, ethereum.NotFound) {
			return status, fmt.Errorf("polygon.MergeTxStatus %s: receipt: %w", shortHash(txHash), err)
		}
		// Not mined: still in the mempool, or the node never saw it
		_, pending, terr := c.client.TransactionByHash(ctx, hash)
		if terr != nil {
			if errors.Is(terr, ethereum.NotFound) {
				return status, nil
			}
			return status, fmt.Errorf("polygon.MergeTxStatus %s: lookup: %w", shortHash(txHash), terr)
		}
		if pending {
			status.State = domain.TxPending
		}
		return status, nil
	}

	if receipt.Status == types.ReceiptStatusSuccessful {
		status.State = domain.TxConfirmed
	} else {
		status.State = domain.TxReverted
	}
	if receipt.BlockNumber != nil {
		status.Block = receipt.BlockNumber.Uint64()
	}
	status.GasUsed = receipt.GasUsed

	if receipt.EffectiveGasPrice != nil {
		feeWei := new(big.Float).SetInt(new(big.Int).Mul(
			receipt.EffectiveGasPrice,
			new(big.Int).SetUint64(receipt.GasUsed),
		))
		status.FeePOL, _ = new(big.Float).Quo(feeWei, big.NewFloat(1e18)).Float64()
		status.FeeUSD = status.FeePOL * c.polPriceUSD()
	}

	c.checkTarget(ctx, hash, txHash)

	c.mu.Lock()
	c.settled[txHash] = status
	c.mu.Unlock()

	slog.Debug("merge tx verified",
		"tx", shortHash(txHash),
		"state", status.State,
		"fee_usd", fmt.Sprintf("$%.4f", status.FeeUSD),
	)
	return status, nil
}

// checkTarget warns when a reported merge hash points at something
// other than the CTF contract. Advisory only.
func (c *Checker) checkTarget(ctx context.Context, hash common.Hash, txHash string) {
	tx, _, err := c.client.TransactionByHash(ctx, hash)
	if err != nil || tx == nil || tx.To() == nil {
		return
	}
	if !strings.EqualFold(tx.To().Hex(), ctfAddress) {
		slog.Warn("merge tx not addressed to CTF contract",
			"tx", shortHash(txHash),
			"to", tx.To().Hex(),
		)
	}
}

// polPriceUSD returns the cached POL price, refreshing from CoinGecko if stale.
func (c *Checker) polPriceUSD() float64 {
	c.mu.RLock()
	price := c.cachedPOLPrice
	updatedAt := c.polPriceAt
	c.mu.RUnlock()

	if price > 0 && time.Since(updatedAt) < polPriceTTL {
		return price
	}

	fetched, err := c.fetchPOLPrice()
	if err != nil {
		slog.Warn("failed to fetch POL price, using fallback", "err", err)
		if price > 0 {
			return price
		}
		return polPriceFallbackUSD
	}

	c.mu.Lock()
	c.cachedPOLPrice = fetched
	c.polPriceAt = time.Now()
	c.mu.Unlock()

	return fetched
}

// fetchPOLPrice queries CoinGecko for the current POL/USD price.
func (c *Checker) fetchPOLPrice() (float64, error) {
	const url = "https://api.coingecko.com/api/v3/simple/price?ids=polygon-ecosystem-token&vs_currencies=usd"

	resp, err := c.httpClient.Get(url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("coingecko status %d: %s", resp.StatusCode, body)
	}

	var data map[string]map[string]float64
	if err := json.Unmarshal(body, &data); err != nil {
		return 0, err
	}

	price, ok := data["polygon-ecosystem-token"]["usd"]
	if !ok || price <= 0 {
		return 0, fmt.Errorf("POL price not found in response")
	}
	return price, nil
}

// isTxHash reports whether s looks like a 0x-prefixed 32-byte hash.
func isTxHash(s string) bool {
	if !strings.HasPrefix(s, "0x") || len(s) != 66 {
		return false
	}
	_, err := hex.DecodeString(s[2:])
	return err == nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12] + "..."
	}
	return h
}
