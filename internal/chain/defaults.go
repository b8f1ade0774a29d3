package chain

import "github.com/shopspring/decimal"

func i64(v int64) *int64 { return &v }

func pct(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// defaultConfigs covers the chains the platform accepts out of the box. A
// chains.yml entry with the same id overrides the whole record.
func defaultConfigs() []Config {
	return []Config{
		{
			ID: "ethereum", Name: "Ethereum", NativeSymbol: "ETH",
			StableSymbol: "USDT", StableContract: "0xdAC17F958D2ee523a2206206994597C13D831ec7", StableDecimals: 6,
			ProcessingFeePercent: pct("1.0"), GasEstimate: pct("0.002"),
			IsEVM: true, Family: FamilyEVM, ChainNumericID: i64(1),
			RequiredConfirmations: 12,
			RPCURL:                "https://eth.llamarpc.com",
		},
		{
			ID: "polygon", Name: "Polygon", NativeSymbol: "MATIC",
			StableSymbol: "USDT", StableContract: "0xc2132D05D31c914a87C6611C10748AEb04B58e8F", StableDecimals: 6,
			ProcessingFeePercent: pct("0.5"), GasEstimate: pct("0.01"),
			IsEVM: true, Family: FamilyEVM, ChainNumericID: i64(137),
			RequiredConfirmations: 30,
			RPCURL:                "https://polygon-rpc.com",
		},
		{
			ID: "bsc", Name: "BNB Smart Chain", NativeSymbol: "BNB",
			StableSymbol: "USDT", StableContract: "0x55d398326f99059fF775485246999027B3197955", StableDecimals: 18,
			ProcessingFeePercent: pct("0.5"), GasEstimate: pct("0.0005"),
			IsEVM: true, Family: FamilyEVM, ChainNumericID: i64(56),
			RequiredConfirmations: 15,
			RPCURL:                "https://bsc-dataseed.binance.org",
		},
		{
			ID: "arbitrum", Name: "Arbitrum One", NativeSymbol: "ETH",
			StableSymbol: "USDT", StableContract: "0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9", StableDecimals: 6,
			ProcessingFeePercent: pct("0.5"), GasEstimate: pct("0.0003"),
			IsEVM: true, Family: FamilyEVM, ChainNumericID: i64(42161),
			RequiredConfirmations: 10,
			RPCURL:                "https://arb1.arbitrum.io/rpc",
		},
		{
			ID: "optimism", Name: "Optimism", NativeSymbol: "ETH",
			StableSymbol: "USDT", StableContract: "0x94b008aA00579c1307B0EF2c499aD98a8ce58e58", StableDecimals: 6,
			ProcessingFeePercent: pct("0.5"), GasEstimate: pct("0.0003"),
			IsEVM: true, Family: FamilyEVM, ChainNumericID: i64(10),
			RequiredConfirmations: 10,
			RPCURL:                "https://mainnet.optimism.io",
		},
		{
			ID: "base", Name: "Base", NativeSymbol: "ETH",
			StableSymbol: "USDC", StableContract: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", StableDecimals: 6,
			ProcessingFeePercent: pct("0.5"), GasEstimate: pct("0.0003"),
			IsEVM: true, Family: FamilyEVM, ChainNumericID: i64(8453),
			RequiredConfirmations: 10,
			RPCURL:                "https://mainnet.base.org",
		},
		{
			ID: "avalanche", Name: "Avalanche C-Chain", NativeSymbol: "AVAX",
			StableSymbol: "USDT", StableContract: "0x9702230A8Ea53601f5cD2dc00fDBc13d4dF4A8c7", StableDecimals: 6,
			ProcessingFeePercent: pct("0.5"), GasEstimate: pct("0.01"),
			IsEVM: true, Family: FamilyEVM, ChainNumericID: i64(43114),
			RequiredConfirmations: 5,
			RPCURL:                "https://api.avax.network/ext/bc/C/rpc",
		},
		{
			ID: "solana", Name: "Solana", NativeSymbol: "SOL",
			StableSymbol: "USDC", StableContract: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", StableDecimals: 6,
			ProcessingFeePercent: pct("0.5"), GasEstimate: pct("0.000005"),
			Family:                FamilySolana,
			RequiredConfirmations: 1,
			RPCURL:                "https://api.mainnet-beta.solana.com",
		},
		{
			ID: "cosmoshub", Name: "Cosmos Hub", NativeSymbol: "ATOM",
			ProcessingFeePercent: pct("0.5"), GasEstimate: pct("0.005"),
			Family:        FamilyCosmos,
			CosmosChainID: "cosmoshub-4", BaseDenom: "uatom", DenomExponent: 6,
			RequiredConfirmations: 1,
			RPCURL:                "https://cosmos-rpc.publicnode.com",
			GRPCURL:               "cosmos-grpc.publicnode.com:443",
		},
		{
			ID: "osmosis", Name: "Osmosis", NativeSymbol: "OSMO",
			ProcessingFeePercent: pct("0.5"), GasEstimate: pct("0.01"),
			Family:        FamilyCosmos,
			CosmosChainID: "osmosis-1", BaseDenom: "uosmo", DenomExponent: 6,
			RequiredConfirmations: 1,
			RPCURL:                "https://osmosis-rpc.publicnode.com",
			GRPCURL:               "osmosis-grpc.publicnode.com:443",
		},
		{
			ID: "sepolia", Name: "Sepolia Testnet", NativeSymbol: "ETH",
			ProcessingFeePercent: pct("0.0"), GasEstimate: pct("0.002"),
			IsEVM: true, Family: FamilyEVM, ChainNumericID: i64(11155111),
			RequiredConfirmations: 3,
			RPCURL:                "https://rpc.sepolia.org",
		},
		{
			ID: "solana-devnet", Name: "Solana Devnet", NativeSymbol: "SOL",
			ProcessingFeePercent: pct("0.0"), GasEstimate: pct("0.000005"),
			Family:                FamilySolana,
			RequiredConfirmations: 1,
			RPCURL:                "https://api.devnet.solana.com",
		},
	}
}
