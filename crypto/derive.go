package crypto

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"basketvault/core/types"
)

// Keccak256Address hashes the concatenation of parts with keccak256 and keeps
// the trailing 20 bytes, the same way account addresses are formed from
// public keys.
func Keccak256Address(parts ...[]byte) types.Address {
	return types.BytesToAddress(ethcrypto.Keccak256(parts...))
}
