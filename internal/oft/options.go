package oft

import (
	"encoding/binary"
	"fmt"
	"math/big"
)

// Executor options tell the destination-side executor how much gas (and
// native value) to spend delivering and composing the message. Layout
// is the transport's type-3 format: a 2-byte type header followed by
// [workerId u8][optionSize u16][optionType u8][payload] entries.
const (
	optionsType3 = uint16(3)

	workerExecutor = uint8(1)

	optionLzReceive = uint8(1)
	optionLzCompose = uint8(3)
)

type Options struct {
	buf []byte
	err error
}

func NewOptions() *Options {
	return &Options{
		buf: binary.BigEndian.AppendUint16(nil, optionsType3),
	}
}

// WithExecutorLzReceive budgets gas (and optional native value) for the
// plain delivery on the destination chain.
func (o *Options) WithExecutorLzReceive(gas uint64, value *big.Int) *Options {
	payload := u128(new(big.Int).SetUint64(gas))
	if value != nil && value.Sign() > 0 {
		v, err := checkedU128(value)
		if err != nil {
			o.err = fmt.Errorf("lzReceive value: %w", err)
			return o
		}
		payload = append(payload, v...)
	}
	o.appendOption(optionLzReceive, payload)
	return o
}

// WithExecutorLzCompose budgets gas and native value for the compose
// call on the receiving executor. Index orders multiple compose steps;
// this system only ever uses index 0.
func (o *Options) WithExecutorLzCompose(index uint16, gas uint64, value *big.Int) *Options {
	payload := binary.BigEndian.AppendUint16(nil, index)
	payload = append(payload, u128(new(big.Int).SetUint64(gas))...)
	if value != nil && value.Sign() > 0 {
		v, err := checkedU128(value)
		if err != nil {
			o.err = fmt.Errorf("lzCompose value: %w", err)
			return o
		}
		payload = append(payload, v...)
	}
	o.appendOption(optionLzCompose, payload)
	return o
}

func (o *Options) appendOption(optionType uint8, payload []byte) {
	o.buf = append(o.buf, workerExecutor)
	o.buf = binary.BigEndian.AppendUint16(o.buf, uint16(1+len(payload)))
	o.buf = append(o.buf, optionType)
	o.buf = append(o.buf, payload...)
}

func (o *Options) Bytes() ([]byte, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.buf, nil
}

func u128(v *big.Int) []byte {
	out := make([]byte, 16)
	v.FillBytes(out)
	return out
}

func checkedU128(v *big.Int) ([]byte, error) {
	if v.Sign() < 0 || v.BitLen() > 128 {
		return nil, fmt.Errorf("value does not fit in uint128: %s", v)
	}
	return u128(v), nil
}
