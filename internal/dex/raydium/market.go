// internal/dex/raydium/market.go
package raydium

// DecodeMarket decodes an order-book market account.
//
// Event queue, bids and asks are read from the 96-byte window that ends at
// the last byte of data, whatever the total length is: market layouts have
// gained and lost leading fields across versions. Header fields (mints,
// vaults, vault signer nonce) are decoded only when data is at least
// MarketHeaderSize long.
func DecodeMarket(data []byte) (*MarketDescriptor, error) {
	if len(data) < MarketTailSize {
		return nil, &DecodeError{Account: "market", Kind: Truncated, Got: len(data), Want: MarketTailSize}
	}

	tail := layoutReader(data[len(data)-MarketTailSize:])
	market := &MarketDescriptor{
		EventQueue: tail.pubkey(0),
		Bids:       tail.pubkey(32),
		Asks:       tail.pubkey(64),
	}

	if len(data) >= MarketHeaderSize {
		r := layoutReader(data)
		market.HasHeader = true
		market.VaultSignerNonce = r.u64(offMarketVaultSignerNonce)
		market.BaseMint = r.pubkey(offMarketBaseMint)
		market.QuoteMint = r.pubkey(offMarketQuoteMint)
		market.BaseVault = r.pubkey(offMarketBaseVault)
		market.QuoteVault = r.pubkey(offMarketQuoteVault)
	}

	return market, nil
}
