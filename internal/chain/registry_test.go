package chain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryGetKnownChain(t *testing.T) {
	r, err := NewRegistry("")
	require.NoError(t, err)

	cfg, err := r.Get("polygon")
	require.NoError(t, err)
	require.Equal(t, "MATIC", cfg.NativeSymbol)
	require.True(t, cfg.IsEVM)
	require.NotNil(t, cfg.ChainNumericID)
	require.EqualValues(t, 137, *cfg.ChainNumericID)
	require.Equal(t, 30, cfg.RequiredConfirmations)
}

func TestRegistryGetIsCaseInsensitive(t *testing.T) {
	r, err := NewRegistry("")
	require.NoError(t, err)

	cfg, err := r.Get("  Solana ")
	require.NoError(t, err)
	require.Equal(t, FamilySolana, cfg.Family)
	require.Nil(t, cfg.ChainNumericID)
}

func TestRegistryGetUnknownChain(t *testing.T) {
	r, err := NewRegistry("")
	require.NoError(t, err)

	_, err = r.Get("dogecoin")
	require.True(t, errors.Is(err, ErrUnsupportedChain))
}

func TestRegistryListStableOrder(t *testing.T) {
	r, err := NewRegistry("")
	require.NoError(t, err)

	first := r.List()
	second := r.List()
	require.Equal(t, first, second)
	require.GreaterOrEqual(t, len(first), 10)
}
