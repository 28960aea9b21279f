package errno

import "errors"

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	var typed Errno
	if errors.As(err, &typed) {
		return typed.Code, typed.Message
	}
	var ptr *Errno
	if errors.As(err, &ptr) {
		return ptr.Code, ptr.Message
	}
	return InternalServerError.Code, err.Error()
}

// Is reports whether err carries target's code. Pipeline stages compare
// categories, not identities, because messages may gain context.
func Is(err error, target Errno) bool {
	code, _ := Decode(err)
	return code == target.Code
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error"}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
	ErrDatabase         = Errno{Code: 10004, Message: "Database error"}
)

// Fee / invariant errors (20300+)
// 全部属于致命错误：在证明生成之前必须中止整个提交流程。
var (
	ErrPriceUnavailable     = Errno{Code: 20301, Message: "Token or native price unavailable, refusing to charge zero"}
	ErrFeeExceedsAmount     = Errno{Code: 20302, Message: "Combined fees meet or exceed gross amount"}
	ErrSelfTargeting        = Errno{Code: 20303, Message: "Sender, recipient and relayer addresses must be distinct"}
	ErrConservationViolated = Errno{Code: 20304, Message: "Outputs do not sum to gross amount"}
	ErrParityMismatch       = Errno{Code: 20305, Message: "Proof-time and populate-time public inputs diverged"}
	ErrUnsupportedChain     = Errno{Code: 20306, Message: "No forwarding contract registered for this chain"}
)

// Relayer errors (20400+): recoverable, trigger the one-shot self-sign fallback.
var (
	ErrRelayerUnavailable = Errno{Code: 20401, Message: "Relayer unreachable or unhealthy"}
	ErrRelayerTimeout     = Errno{Code: 20402, Message: "Relayer did not respond in time"}
	ErrRelayerRejected    = Errno{Code: 20403, Message: "Relayer rejected the transaction"}
)

// Submission errors (20500+)
var (
	ErrMalformedTransaction = Errno{Code: 20501, Message: "Populated transaction is missing required fields"}
	ErrAttemptInFlight      = Errno{Code: 20502, Message: "Another transfer for this wallet is already in flight"}
)

// IsRelayerFailure reports whether err belongs to the recoverable relayer
// category (20400+). Anything else must not be retried by self-signing.
func IsRelayerFailure(err error) bool {
	code, _ := Decode(err)
	return code >= 20400 && code < 20500
}
