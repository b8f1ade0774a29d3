// Package solana executes transfers on Solana through the solana-go RPC
// client.
package solana

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/solacehealth/solace/internal/chain"
	"github.com/solacehealth/solace/internal/payment/domain"
)

var lamportsPerSOL = decimal.New(1, 9)

// Adapter serves one Solana cluster.
type Adapter struct {
	log    *zap.Logger
	cfg    chain.Config
	client *rpc.Client
	signer *solana.PrivateKey
}

func New(log *zap.Logger, cfg chain.Config, signerKeyBase58 string) (*Adapter, error) {
	var signer *solana.PrivateKey
	if signerKeyBase58 != "" {
		key, err := solana.PrivateKeyFromBase58(signerKeyBase58)
		if err != nil {
			return nil, fmt.Errorf("invalid solana signer key: %w", err)
		}
		signer = &key
	}

	return &Adapter{
		log:    log.Named("solana." + cfg.ID),
		cfg:    cfg,
		client: rpc.New(cfg.RPCURL),
		signer: signer,
	}, nil
}

func (a *Adapter) Family() chain.Family { return chain.FamilySolana }

func (a *Adapter) ValidateAddress(address string) error {
	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return fmt.Errorf("%w: %q is not a base58 public key", domain.ErrInvalidAddress, address)
	}
	return nil
}

func (a *Adapter) NativeBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	pub, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a base58 public key", domain.ErrInvalidAddress, address)
	}

	out, err := a.client.GetBalance(ctx, pub, rpc.CommitmentConfirmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("solana balance %s: %w", a.cfg.ID, err)
	}
	return decimal.NewFromUint64(out.Value).Div(lamportsPerSOL), nil
}

func (a *Adapter) StableBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	if !a.cfg.HasStableAsset() {
		return decimal.Zero, chain.ErrNoStableAsset
	}
	owner, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a base58 public key", domain.ErrInvalidAddress, address)
	}
	mint, err := solana.PublicKeyFromBase58(a.cfg.StableContract)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad stable mint for %s: %w", a.cfg.ID, err)
	}

	accounts, err := a.client.GetTokenAccountsByOwner(ctx, owner,
		&rpc.GetTokenAccountsConfig{Mint: &mint},
		&rpc.GetTokenAccountsOpts{Commitment: rpc.CommitmentConfirmed},
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("solana token accounts %s: %w", a.cfg.ID, err)
	}

	total := decimal.Zero
	for _, account := range accounts.Value {
		balance, err := a.client.GetTokenAccountBalance(ctx, account.Pubkey, rpc.CommitmentConfirmed)
		if err != nil {
			return decimal.Zero, fmt.Errorf("solana token balance %s: %w", a.cfg.ID, err)
		}
		amount, err := decimal.NewFromString(balance.Value.Amount)
		if err != nil {
			continue
		}
		total = total.Add(amount.Shift(-int32(balance.Value.Decimals)))
	}
	return total, nil
}

// Send broadcasts a system transfer or an SPL transfer from the platform
// wallet.
func (a *Adapter) Send(ctx context.Context, currency domain.Currency, destination string, amount decimal.Decimal) (*domain.TransferReceipt, error) {
	if a.signer == nil {
		return nil, fmt.Errorf("%w: no signer configured for %s", domain.ErrSubmissionFailed, a.cfg.ID)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidAmount
	}
	dest, err := solana.PublicKeyFromBase58(destination)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a base58 public key", domain.ErrInvalidAddress, destination)
	}

	from := a.signer.PublicKey()

	var instruction solana.Instruction
	switch currency {
	case domain.CurrencyNative:
		lamports := amount.Mul(lamportsPerSOL).BigInt().Uint64()
		instruction = system.NewTransferInstruction(lamports, from, dest).Build()
	case domain.CurrencyStable:
		instruction, err = a.stableTransferInstruction(from, dest, amount)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown currency %q", domain.ErrInvalidAmount, currency)
	}

	recent, err := a.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("%w: latest blockhash: %v", domain.ErrSubmissionFailed, err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{instruction},
		recent.Value.Blockhash,
		solana.TransactionPayer(from),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: build tx: %v", domain.ErrSubmissionFailed, err)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(from) {
			return a.signer
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("%w: sign tx: %v", domain.ErrSubmissionFailed, err)
	}

	sig, err := a.client.SendTransaction(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("%w: broadcast: %v", domain.ErrSubmissionFailed, err)
	}

	a.log.Info("transfer broadcast",
		zap.String("signature", sig.String()),
		zap.String("currency", string(currency)),
	)

	return &domain.TransferReceipt{TransactionReference: sig.String()}, nil
}

// stableTransferInstruction moves SPL units between the associated token
// accounts of the platform wallet and the destination. The destination
// account must already exist; a checked transfer fails on-chain otherwise.
func (a *Adapter) stableTransferInstruction(from, dest solana.PublicKey, amount decimal.Decimal) (solana.Instruction, error) {
	if !a.cfg.HasStableAsset() {
		return nil, chain.ErrNoStableAsset
	}
	mint, err := solana.PublicKeyFromBase58(a.cfg.StableContract)
	if err != nil {
		return nil, fmt.Errorf("bad stable mint for %s: %w", a.cfg.ID, err)
	}

	source, _, err := solana.FindAssociatedTokenAddress(from, mint)
	if err != nil {
		return nil, fmt.Errorf("%w: source token account: %v", domain.ErrSubmissionFailed, err)
	}
	sink, _, err := solana.FindAssociatedTokenAddress(dest, mint)
	if err != nil {
		return nil, fmt.Errorf("%w: destination token account: %v", domain.ErrSubmissionFailed, err)
	}

	units := amount.Shift(int32(a.cfg.StableDecimals)).BigInt().Uint64()
	return token.NewTransferCheckedInstruction(
		units,
		uint8(a.cfg.StableDecimals),
		source,
		mint,
		sink,
		from,
		nil,
	).Build(), nil
}

// TransactionStatus maps signature status to confirmation progress. Solana
// finality is expressed as a commitment level rather than a depth, so a
// finalized signature reports the registry's required confirmations.
func (a *Adapter) TransactionStatus(ctx context.Context, reference string) (*domain.TransactionState, error) {
	sig, err := solana.SignatureFromBase58(reference)
	if err != nil {
		return nil, fmt.Errorf("bad signature %q: %w", reference, err)
	}

	out, err := a.client.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return nil, fmt.Errorf("solana signature status %s: %w", a.cfg.ID, err)
	}
	if len(out.Value) == 0 || out.Value[0] == nil {
		return &domain.TransactionState{Found: false}, nil
	}

	status := out.Value[0]
	state := &domain.TransactionState{
		Found:       true,
		Failed:      status.Err != nil,
		BlockHeight: status.Slot,
	}
	switch status.ConfirmationStatus {
	case rpc.ConfirmationStatusFinalized:
		state.Confirmations = uint64(a.cfg.RequiredConfirmations)
	case rpc.ConfirmationStatusConfirmed:
		state.Confirmations = 1
	}
	return state, nil
}
