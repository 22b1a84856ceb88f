package oft

import (
	"fmt"
	"math/big"

	ecommon "github.com/ethereum/go-ethereum/common"
)

// SendParam is the wire-level description of one outbound transfer, as
// the transport contract expects it. Amounts are in the token's
// smallest (local-decimal) units.
type SendParam struct {
	DstEid       uint32
	To           [32]byte
	AmountLD     *big.Int
	MinAmountLD  *big.Int
	ExtraOptions []byte
	ComposeMsg   []byte
	OftCmd       []byte
}

// MessagingFee is the transport's price for one hop.
type MessagingFee struct {
	NativeFee  *big.Int
	LzTokenFee *big.Int
}

// AddressToBytes32 left-pads an EVM address into the transport's
// 32-byte recipient form.
func AddressToBytes32(addr ecommon.Address) [32]byte {
	var out [32]byte
	copy(out[12:], addr.Bytes())
	return out
}

// Bytes32ToAddress is the strict inverse: the 12 leading bytes must be
// zero or the value is not an EVM address.
func Bytes32ToAddress(b [32]byte) (ecommon.Address, error) {
	for _, v := range b[:12] {
		if v != 0 {
			return ecommon.Address{}, fmt.Errorf("not an EVM address: %x", b)
		}
	}
	return ecommon.BytesToAddress(b[12:]), nil
}
