package compose

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
)

// Message describes the hop the hub composer must dispatch after the
// conversion, plus the native value pre-funded for that dispatch. It is
// carried inside the first hop's payload as opaque bytes.
type Message struct {
	DstEid         uint32
	Recipient      [32]byte
	Amount         *big.Int
	MinAmount      *big.Int
	ExecutionValue *big.Int
	ExtraOptions   []byte
}

var ErrMalformedCompose = errors.New("malformed compose payload")

const (
	codecVersion = uint16(1)

	// version(2) + dstEid(4) + recipient(32) + amount(32) +
	// minAmount(32) + executionValue(32) + optLen(2)
	fixedSize = 2 + 4 + 32 + 32 + 32 + 32 + 2
)

// IsEmpty reports whether the message is the "no further hop" sentinel.
func (m Message) IsEmpty() bool {
	return m.DstEid == 0 &&
		m.Recipient == [32]byte{} &&
		isZero(m.Amount) &&
		isZero(m.MinAmount) &&
		isZero(m.ExecutionValue) &&
		len(m.ExtraOptions) == 0
}

// Encode serializes the message into the fixed wire layout. Identical
// inputs always produce identical bytes. The empty message encodes to
// the zero-length byte string.
func Encode(m Message) ([]byte, error) {
	if m.IsEmpty() {
		return []byte{}, nil
	}
	if len(m.ExtraOptions) > 0xFFFF {
		return nil, fmt.Errorf("extra options too long: %d bytes", len(m.ExtraOptions))
	}

	buf := make([]byte, 0, fixedSize+len(m.ExtraOptions))
	buf = binary.BigEndian.AppendUint16(buf, codecVersion)
	buf = binary.BigEndian.AppendUint32(buf, m.DstEid)
	buf = append(buf, m.Recipient[:]...)

	for _, amount := range []*big.Int{m.Amount, m.MinAmount, m.ExecutionValue} {
		word, err := toWord(amount)
		if err != nil {
			return nil, err
		}
		buf = append(buf, word...)
	}

	buf = binary.BigEndian.AppendUint16(buf, uint16(len(m.ExtraOptions)))
	buf = append(buf, m.ExtraOptions...)
	return buf, nil
}

// Decode is the strict inverse of Encode. A zero-length payload decodes
// to the empty message; anything else must match the layout exactly or
// the decode fails. It never coerces a malformed payload.
func Decode(payload []byte) (Message, error) {
	if len(payload) == 0 {
		return Message{}, nil
	}
	if len(payload) < fixedSize {
		return Message{}, fmt.Errorf("%w: %d bytes, need at least %d", ErrMalformedCompose, len(payload), fixedSize)
	}

	version := binary.BigEndian.Uint16(payload[0:2])
	if version != codecVersion {
		return Message{}, fmt.Errorf("%w: unknown version %d", ErrMalformedCompose, version)
	}

	var m Message
	m.DstEid = binary.BigEndian.Uint32(payload[2:6])
	copy(m.Recipient[:], payload[6:38])
	m.Amount = new(big.Int).SetBytes(payload[38:70])
	m.MinAmount = new(big.Int).SetBytes(payload[70:102])
	m.ExecutionValue = new(big.Int).SetBytes(payload[102:134])

	optLen := int(binary.BigEndian.Uint16(payload[134:136]))
	if len(payload) != fixedSize+optLen {
		return Message{}, fmt.Errorf("%w: options length %d does not match payload size %d", ErrMalformedCompose, optLen, len(payload))
	}
	if optLen > 0 {
		m.ExtraOptions = append([]byte(nil), payload[fixedSize:]...)
	}

	if m.IsEmpty() {
		return Message{}, fmt.Errorf("%w: non-empty payload decodes to empty message", ErrMalformedCompose)
	}
	return m, nil
}

func toWord(amount *big.Int) ([]byte, error) {
	if amount == nil {
		return make([]byte, 32), nil
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount cannot be negative: %s", amount)
	}
	if amount.BitLen() > 256 {
		return nil, fmt.Errorf("amount overflows 32 bytes: %s", amount)
	}
	word := make([]byte, 32)
	amount.FillBytes(word)
	return word, nil
}

func isZero(amount *big.Int) bool {
	return amount == nil || amount.Sign() == 0
}
