package exchange

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/adshao/go-binance/v2/common"
)

var (
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInsufficientFunds = errors.New("insufficient funds or locked")
	ErrInvalidAsset      = errors.New("invalid asset")
)

// OrderError ties a failed order intent to its pair and quantity.
type OrderError struct {
	Err      error
	Pair     string
	Quantity float64
}

func (o *OrderError) Error() string {
	return fmt.Sprintf("order error: %v", o.Err)
}

func (o *OrderError) Unwrap() error {
	return o.Err
}

// Kind buckets every exchange failure into the classes the strategies
// react to.
type Kind string

const (
	KindNetwork           Kind = "network"
	KindRateLimit         Kind = "rate_limit"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindInvalidOrder      Kind = "invalid_order"
	KindExchange          Kind = "exchange"
	KindUnexpected        Kind = "unexpected"
)

// CallError wraps a failed adapter call with its classification.
type CallError struct {
	Kind Kind
	Op   string
	Pair string
	Err  error
}

func (e *CallError) Error() string {
	if e.Pair != "" {
		return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Pair, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of err, or KindUnexpected when err
// was never classified.
func KindOf(err error) Kind {
	var call *CallError
	if errors.As(err, &call) {
		return call.Kind
	}
	return Classify(err)
}

// IsKind reports whether err classifies as k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// Binance error codes that matter for classification. The full table is
// in the exchange API docs; only the codes the bots can trigger are
// listed.
const (
	codeTooManyRequests    = -1003
	codeTimeout            = -1007
	codeInvalidTimestamp   = -1021
	codeFilterFailure      = -1013
	codeBadPrecision       = -1111
	codeBadSymbol          = -1121
	codeNewOrderRejected   = -2010
	codeCancelRejected     = -2011
	codeNoSuchOrder        = -2013
	codeMarginNoNeedChange = -4046
)

// Classify maps a raw client error into a failure Kind.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}

	var api *common.APIError
	if errors.As(err, &api) {
		switch api.Code {
		case codeTooManyRequests:
			return KindRateLimit
		case codeTimeout, codeInvalidTimestamp:
			return KindNetwork
		case codeFilterFailure, codeBadPrecision, codeBadSymbol,
			codeCancelRejected, codeNoSuchOrder:
			return KindInvalidOrder
		case codeNewOrderRejected:
			if strings.Contains(strings.ToLower(api.Message), "insufficient balance") {
				return KindInsufficientFunds
			}
			return KindInvalidOrder
		}
		// HTTP-level throttling surfaces as code 0 with the status text.
		if strings.Contains(api.Message, "429") || strings.Contains(api.Message, "418") {
			return KindRateLimit
		}
		return KindExchange
	}

	if errors.Is(err, ErrInsufficientFunds) {
		return KindInsufficientFunds
	}
	if errors.Is(err, ErrInvalidQuantity) || errors.Is(err, ErrInvalidAsset) {
		return KindInvalidOrder
	}

	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	if strings.Contains(err.Error(), "connection reset") ||
		strings.Contains(err.Error(), "connection refused") {
		return KindNetwork
	}

	return KindUnexpected
}

// classified wraps err into a CallError unless it already is one.
func classified(op, pair string, err error) error {
	if err == nil {
		return nil
	}
	var call *CallError
	if errors.As(err, &call) {
		return err
	}
	return &CallError{Kind: Classify(err), Op: op, Pair: pair, Err: err}
}
