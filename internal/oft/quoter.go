package oft

import (
	"context"
	"math/big"

	"github.com/sirupsen/logrus"
)

// SendQuoter prices a single hop. *Transport implements it; tests use
// fakes.
type SendQuoter interface {
	QuoteSend(ctx context.Context, param SendParam) (MessagingFee, error)
}

// DefaultInnerFee is the conservative fallback funding for a hop whose
// quote failed: 0.01 native. The inner hop is pre-funded and any
// surplus is refunded by the executor, so erring high is safe.
var DefaultInnerFee = big.NewInt(10_000_000_000_000_000)

// innerFeeBufferBps pads a successful inner quote by 20% to absorb
// price drift between quoting here and execution on the hub.
const innerFeeBufferBps = 2_000

// Quoter prices hops with the policy split the two roles require: the
// outer hop is what the caller is about to pay for, so its quote must
// be exact or fatal; the inner hop is advisory, pre-funded through the
// first hop's value with shortfalls refunded.
type Quoter struct {
	logger *logrus.Logger
}

func NewQuoter(logger *logrus.Logger) *Quoter {
	return &Quoter{
		logger: logger,
	}
}

// Outer quotes the hop the top-level transaction funds directly. A
// failure here risks loss of funds or a revert, so it is surfaced
// verbatim, never defaulted.
func (q *Quoter) Outer(ctx context.Context, transport SendQuoter, param SendParam) (MessagingFee, error) {
	return transport.QuoteSend(ctx, param)
}

// Inner returns the native value to attach for the second hop's
// execution on the hub: the quoted fee padded by the drift buffer, or
// DefaultInnerFee when the quote fails.
func (q *Quoter) Inner(ctx context.Context, transport SendQuoter, param SendParam) *big.Int {
	fee, err := transport.QuoteSend(ctx, param)
	if err != nil {
		q.logger.WithError(err).
			WithField("dst_eid", param.DstEid).
			Warn("inner hop quote failed, using default fee")
		return new(big.Int).Set(DefaultInnerFee)
	}

	buffered := new(big.Int).Mul(fee.NativeFee, big.NewInt(10_000+innerFeeBufferBps))
	return buffered.Div(buffered, big.NewInt(10_000))
}
