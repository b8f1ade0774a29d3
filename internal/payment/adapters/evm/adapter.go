// Package evm executes transfers on EVM chains through go-ethereum.
package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/solacehealth/solace/internal/chain"
	"github.com/solacehealth/solace/internal/payment/domain"
)

const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

var (
	addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	weiPerEther    = decimal.New(1, 18)
)

// Adapter serves one EVM chain.
type Adapter struct {
	log     *zap.Logger
	cfg     chain.Config
	eth     *ethclient.Client
	chainID *big.Int
	signer  *ecdsa.PrivateKey
	token   abi.ABI
}

func New(log *zap.Logger, cfg chain.Config, signerKeyHex string) (*Adapter, error) {
	if cfg.ChainNumericID == nil {
		return nil, fmt.Errorf("%w: %s has no numeric chain id", chain.ErrUnsupportedChain, cfg.ID)
	}

	eth, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("evm rpc dial %s: %w", cfg.ID, err)
	}

	var signer *ecdsa.PrivateKey
	if signerKeyHex != "" {
		signer, err = crypto.HexToECDSA(strings.TrimPrefix(signerKeyHex, "0x"))
		if err != nil {
			eth.Close()
			return nil, fmt.Errorf("invalid evm signer key: %w", err)
		}
	}

	token, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		eth.Close()
		return nil, err
	}

	return &Adapter{
		log:     log.Named("evm." + cfg.ID),
		cfg:     cfg,
		eth:     eth,
		chainID: big.NewInt(*cfg.ChainNumericID),
		signer:  signer,
		token:   token,
	}, nil
}

func (a *Adapter) Family() chain.Family { return chain.FamilyEVM }

func (a *Adapter) ValidateAddress(address string) error {
	if !addressPattern.MatchString(address) {
		return fmt.Errorf("%w: %q is not a hex address", domain.ErrInvalidAddress, address)
	}
	return nil
}

func (a *Adapter) NativeBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	if err := a.ValidateAddress(address); err != nil {
		return decimal.Zero, err
	}
	wei, err := a.eth.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("evm balance %s: %w", a.cfg.ID, err)
	}
	return decimal.NewFromBigInt(wei, 0).Div(weiPerEther), nil
}

func (a *Adapter) StableBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	if !a.cfg.HasStableAsset() {
		return decimal.Zero, chain.ErrNoStableAsset
	}
	if err := a.ValidateAddress(address); err != nil {
		return decimal.Zero, err
	}

	callData, err := a.token.Pack("balanceOf", common.HexToAddress(address))
	if err != nil {
		return decimal.Zero, err
	}
	tokenAddr := common.HexToAddress(a.cfg.StableContract)
	raw, err := a.eth.CallContract(ctx, ethereum.CallMsg{To: &tokenAddr, Data: callData}, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("erc20 balanceOf %s: %w", a.cfg.ID, err)
	}

	out, err := a.token.Unpack("balanceOf", raw)
	if err != nil || len(out) == 0 {
		return decimal.Zero, fmt.Errorf("erc20 balanceOf decode %s: %w", a.cfg.ID, err)
	}
	units, ok := out[0].(*big.Int)
	if !ok {
		return decimal.Zero, errors.New("erc20 balanceOf returned non-integer")
	}
	return decimal.NewFromBigInt(units, int32(-a.cfg.StableDecimals)), nil
}

// Send broadcasts a native or ERC-20 transfer from the platform wallet.
func (a *Adapter) Send(ctx context.Context, currency domain.Currency, destination string, amount decimal.Decimal) (*domain.TransferReceipt, error) {
	if a.signer == nil {
		return nil, fmt.Errorf("%w: no signer configured for %s", domain.ErrSubmissionFailed, a.cfg.ID)
	}
	if err := a.ValidateAddress(destination); err != nil {
		return nil, err
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidAmount
	}

	from := crypto.PubkeyToAddress(a.signer.PublicKey)
	to := common.HexToAddress(destination)

	nonce, err := a.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("%w: pending nonce: %v", domain.ErrSubmissionFailed, err)
	}
	gasPrice, err := a.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: suggest gas price: %v", domain.ErrSubmissionFailed, err)
	}

	var tx *types.Transaction
	switch currency {
	case domain.CurrencyNative:
		value := amount.Mul(weiPerEther).BigInt()
		tx = types.NewTransaction(nonce, to, value, 21000, gasPrice, nil)
	case domain.CurrencyStable:
		if !a.cfg.HasStableAsset() {
			return nil, chain.ErrNoStableAsset
		}
		units := amount.Shift(int32(a.cfg.StableDecimals)).BigInt()
		callData, err := a.token.Pack("transfer", to, units)
		if err != nil {
			return nil, err
		}
		tokenAddr := common.HexToAddress(a.cfg.StableContract)
		tx = types.NewTransaction(nonce, tokenAddr, big.NewInt(0), 90000, gasPrice, callData)
	default:
		return nil, fmt.Errorf("%w: unknown currency %q", domain.ErrInvalidAmount, currency)
	}

	signed, err := types.SignTx(tx, types.NewEIP155Signer(a.chainID), a.signer)
	if err != nil {
		return nil, fmt.Errorf("%w: sign tx: %v", domain.ErrSubmissionFailed, err)
	}
	if err := a.eth.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("%w: broadcast: %v", domain.ErrSubmissionFailed, err)
	}

	a.log.Info("transfer broadcast",
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.String("currency", string(currency)),
	)

	return &domain.TransferReceipt{
		TransactionReference: signed.Hash().Hex(),
		GasUsed:              decimal.NewFromBigInt(gasPrice, 0).Mul(decimal.NewFromUint64(tx.Gas())).Div(weiPerEther),
	}, nil
}

// TransactionStatus reads the receipt and counts confirmations relative to
// the chain head.
func (a *Adapter) TransactionStatus(ctx context.Context, reference string) (*domain.TransactionState, error) {
	receipt, err := a.eth.TransactionReceipt(ctx, common.HexToHash(reference))
	if err != nil {
		// Not yet mined is a normal pending state, not a failure.
		if errors.Is(err, ethereum.NotFound) || strings.Contains(err.Error(), "not found") {
			return &domain.TransactionState{Found: false}, nil
		}
		return nil, fmt.Errorf("evm receipt %s: %w", a.cfg.ID, err)
	}

	head, err := a.eth.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("evm block number %s: %w", a.cfg.ID, err)
	}

	state := &domain.TransactionState{
		Found:       true,
		Failed:      receipt.Status == types.ReceiptStatusFailed,
		BlockHeight: receipt.BlockNumber.Uint64(),
	}
	if head >= state.BlockHeight {
		state.Confirmations = head - state.BlockHeight + 1
	}
	return state, nil
}

func (a *Adapter) Close() { a.eth.Close() }
