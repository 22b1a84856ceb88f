package settle

import "errors"

// Every error below is fatal to the attempt: the pipeline halts, the
// error propagates with stage context attached, and no retry happens in
// this layer. A caller that wants a retry constructs a fresh attempt.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrQuoteFailed         = errors.New("outer hop quote failed")
	ErrApprovalFailed      = errors.New("approval failed")
	ErrSlippageViolation   = errors.New("expected output below requested minimum")
	ErrSubmissionFailed    = errors.New("settlement submission failed")
)
