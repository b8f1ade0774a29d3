// Package cosmos executes bank transfers on Cosmos SDK chains over gRPC.
package cosmos

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	sdkmath "cosmossdk.io/math"
	"github.com/cosmos/cosmos-sdk/client"
	clienttx "github.com/cosmos/cosmos-sdk/client/tx"
	"github.com/cosmos/cosmos-sdk/codec"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	"github.com/cosmos/cosmos-sdk/std"
	sdk "github.com/cosmos/cosmos-sdk/types"
	txn "github.com/cosmos/cosmos-sdk/types/tx"
	"github.com/cosmos/cosmos-sdk/types/tx/signing"
	authsigning "github.com/cosmos/cosmos-sdk/x/auth/signing"
	authtx "github.com/cosmos/cosmos-sdk/x/auth/tx"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/solacehealth/solace/internal/chain"
	"github.com/solacehealth/solace/internal/payment/domain"
)

const defaultGasLimit = 200000

// Adapter serves one Cosmos SDK chain.
type Adapter struct {
	log      *zap.Logger
	cfg      chain.Config
	conn     *grpc.ClientConn
	txConfig client.TxConfig
	codec    codec.Codec
	signer   *secp256k1.PrivKey
	feeDenom string
}

func New(log *zap.Logger, cfg chain.Config, signerKeyHex, feeDenom string) (*Adapter, error) {
	registry := codectypes.NewInterfaceRegistry()
	std.RegisterInterfaces(registry)
	banktypes.RegisterInterfaces(registry)
	authtypes.RegisterInterfaces(registry)
	marshaler := codec.NewProtoCodec(registry)
	txConfig := authtx.NewTxConfig(marshaler, authtx.DefaultSignModes)

	conn, err := grpc.NewClient(cfg.GRPCURL, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("cosmos grpc dial %s: %w", cfg.ID, err)
	}

	var signer *secp256k1.PrivKey
	if signerKeyHex != "" {
		raw, err := hex.DecodeString(strings.TrimPrefix(signerKeyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid cosmos signer key: %w", err)
		}
		signer = &secp256k1.PrivKey{Key: raw}
	}

	if feeDenom == "" {
		feeDenom = cfg.BaseDenom
	}

	return &Adapter{
		log:      log.Named("cosmos." + cfg.ID),
		cfg:      cfg,
		conn:     conn,
		txConfig: txConfig,
		codec:    marshaler,
		signer:   signer,
		feeDenom: feeDenom,
	}, nil
}

func (a *Adapter) Family() chain.Family { return chain.FamilyCosmos }

func (a *Adapter) ValidateAddress(address string) error {
	if _, err := sdk.AccAddressFromBech32(address); err != nil {
		return fmt.Errorf("%w: %q is not a bech32 address", domain.ErrInvalidAddress, address)
	}
	return nil
}

func (a *Adapter) NativeBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	if err := a.ValidateAddress(address); err != nil {
		return decimal.Zero, err
	}

	bank := banktypes.NewQueryClient(a.conn)
	resp, err := bank.Balance(ctx, &banktypes.QueryBalanceRequest{
		Address: address,
		Denom:   a.cfg.BaseDenom,
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("cosmos balance %s: %w", a.cfg.ID, err)
	}
	if resp.Balance == nil {
		return decimal.Zero, nil
	}

	units, err := decimal.NewFromString(resp.Balance.Amount.String())
	if err != nil {
		return decimal.Zero, err
	}
	return units.Shift(-a.cfg.DenomExponent), nil
}

// StableBalance always reports no stable asset; supported Cosmos chains pay
// in the native denom only.
func (a *Adapter) StableBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	return decimal.Zero, chain.ErrNoStableAsset
}

// Send builds, signs, and broadcasts a bank MsgSend from the platform
// account.
func (a *Adapter) Send(ctx context.Context, currency domain.Currency, destination string, amount decimal.Decimal) (*domain.TransferReceipt, error) {
	if a.signer == nil {
		return nil, fmt.Errorf("%w: no signer configured for %s", domain.ErrSubmissionFailed, a.cfg.ID)
	}
	if currency == domain.CurrencyStable {
		return nil, chain.ErrNoStableAsset
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidAmount
	}
	if err := a.ValidateAddress(destination); err != nil {
		return nil, err
	}

	from := sdk.AccAddress(a.signer.PubKey().Address())
	units := amount.Shift(a.cfg.DenomExponent).BigInt()
	coin := sdk.NewCoin(a.cfg.BaseDenom, sdkmath.NewIntFromBigInt(units))

	accountNumber, sequence, err := a.accountState(ctx, from.String())
	if err != nil {
		return nil, fmt.Errorf("%w: account query: %v", domain.ErrSubmissionFailed, err)
	}

	builder := a.txConfig.NewTxBuilder()
	msg := banktypes.NewMsgSend(from, sdk.MustAccAddressFromBech32(destination), sdk.NewCoins(coin))
	if err := builder.SetMsgs(msg); err != nil {
		return nil, fmt.Errorf("%w: set msgs: %v", domain.ErrSubmissionFailed, err)
	}
	builder.SetGasLimit(defaultGasLimit)
	builder.SetFeeAmount(sdk.NewCoins(sdk.NewInt64Coin(a.feeDenom, 5000)))

	signerData := authsigning.SignerData{
		ChainID:       a.cfg.CosmosChainID,
		AccountNumber: accountNumber,
		Sequence:      sequence,
		PubKey:        a.signer.PubKey(),
		Address:       from.String(),
	}

	// Two-pass signing: a placeholder signature first so the sign bytes
	// include the signer info, then the real signature.
	placeholder := signing.SignatureV2{
		PubKey: a.signer.PubKey(),
		Data: &signing.SingleSignatureData{
			SignMode: signing.SignMode_SIGN_MODE_DIRECT,
		},
		Sequence: sequence,
	}
	if err := builder.SetSignatures(placeholder); err != nil {
		return nil, fmt.Errorf("%w: set signatures: %v", domain.ErrSubmissionFailed, err)
	}

	sig, err := clienttx.SignWithPrivKey(ctx, signing.SignMode_SIGN_MODE_DIRECT, signerData, builder, a.signer, a.txConfig, sequence)
	if err != nil {
		return nil, fmt.Errorf("%w: sign: %v", domain.ErrSubmissionFailed, err)
	}
	if err := builder.SetSignatures(sig); err != nil {
		return nil, fmt.Errorf("%w: set signatures: %v", domain.ErrSubmissionFailed, err)
	}

	txBytes, err := a.txConfig.TxEncoder()(builder.GetTx())
	if err != nil {
		return nil, fmt.Errorf("%w: encode tx: %v", domain.ErrSubmissionFailed, err)
	}

	txClient := txn.NewServiceClient(a.conn)
	resp, err := txClient.BroadcastTx(ctx, &txn.BroadcastTxRequest{
		TxBytes: txBytes,
		Mode:    txn.BroadcastMode_BROADCAST_MODE_SYNC,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: broadcast: %v", domain.ErrSubmissionFailed, err)
	}
	if resp.TxResponse.Code != 0 {
		return nil, fmt.Errorf("%w: broadcast rejected: %s", domain.ErrSubmissionFailed, resp.TxResponse.RawLog)
	}

	a.log.Info("transfer broadcast", zap.String("tx_hash", resp.TxResponse.TxHash))

	return &domain.TransferReceipt{TransactionReference: resp.TxResponse.TxHash}, nil
}

// TransactionStatus looks the transaction up by hash. Cosmos finality is a
// single block, so an included transaction reports the registry's required
// confirmations.
func (a *Adapter) TransactionStatus(ctx context.Context, reference string) (*domain.TransactionState, error) {
	txClient := txn.NewServiceClient(a.conn)
	resp, err := txClient.GetTx(ctx, &txn.GetTxRequest{Hash: reference})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return &domain.TransactionState{Found: false}, nil
		}
		return nil, fmt.Errorf("cosmos get tx %s: %w", a.cfg.ID, err)
	}
	if resp.TxResponse == nil || resp.TxResponse.Height == 0 {
		return &domain.TransactionState{Found: false}, nil
	}

	return &domain.TransactionState{
		Found:         true,
		Failed:        resp.TxResponse.Code != 0,
		BlockHeight:   uint64(resp.TxResponse.Height),
		Confirmations: uint64(a.cfg.RequiredConfirmations),
	}, nil
}

func (a *Adapter) accountState(ctx context.Context, address string) (uint64, uint64, error) {
	auth := authtypes.NewQueryClient(a.conn)
	resp, err := auth.Account(ctx, &authtypes.QueryAccountRequest{Address: address})
	if err != nil {
		return 0, 0, err
	}

	var account sdk.AccountI
	if err := a.codec.UnpackAny(resp.Account, &account); err != nil {
		return 0, 0, err
	}
	return account.GetAccountNumber(), account.GetSequence(), nil
}
