// internal/dex/raydium/mint.go
package raydium

import (
	"fmt"
)

// DecodeMint decodes an SPL token mint account. Authority options are u32
// COption tags: 0 means none, 1 means the following key is set.
func DecodeMint(data []byte) (*MintInfo, error) {
	if len(data) < MintAccountSize {
		return nil, &DecodeError{Account: "mint", Kind: Truncated, Got: len(data), Want: MintAccountSize}
	}
	r := layoutReader(data)

	info := &MintInfo{
		Supply:      r.u64(offMintSupply),
		Decimals:    data[offMintDecimals],
		Initialized: data[offMintInitialized] != 0,
	}

	switch opt := r.u32(offMintAuthorityOption); opt {
	case 0:
	case 1:
		key := r.pubkey(offMintAuthority)
		info.MintAuthority = &key
	default:
		return nil, &DecodeError{Account: "mint", Kind: BadMagic, Detail: fmt.Sprintf("mint authority option %d", opt)}
	}

	switch opt := r.u32(offFreezeAuthorityOption); opt {
	case 0:
	case 1:
		key := r.pubkey(offFreezeAuthority)
		info.FreezeAuthority = &key
	default:
		return nil, &DecodeError{Account: "mint", Kind: BadMagic, Detail: fmt.Sprintf("freeze authority option %d", opt)}
	}

	return info, nil
}
