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

// Decode tries to convert an error to Errno.
// Wrapped errors (fmt.Errorf("...: %w", errno.ErrX)) keep their code, the message is the full chain.
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	var typed Errno
	if errors.As(err, &typed) {
		return typed.Code, err.Error()
	}
	var ptr *Errno
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Code, err.Error()
	}
	return InternalServerError.Code, err.Error()
}

// Common Errors
var (
	OK                    = Errno{Code: 0, Message: "Success"}
	InternalServerError   = Errno{Code: 10001, Message: "Internal server error"}
	ErrBind               = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
	ErrStorageUnavailable = Errno{Code: 10004, Message: "Storage unavailable"}
)

// Vault / crypto errors (20000+)
var (
	// 密码错误与数据损坏统一返回该错误，调用方无法区分两者
	ErrWrongPasswordOrCorrupted = Errno{Code: 20101, Message: "Wrong password or corrupted data"}
	ErrUnsupportedFormatVersion = Errno{Code: 20102, Message: "Unsupported envelope format version"}
	ErrPasswordRequired         = Errno{Code: 20103, Message: "Password required"}

	ErrDuplicateAddress = Errno{Code: 20201, Message: "Wallet address already exists"}
	ErrNotFound         = Errno{Code: 20202, Message: "Not found"}
	ErrNoActiveWallet   = Errno{Code: 20203, Message: "No active wallet"}
	ErrInvalidMnemonic  = Errno{Code: 20204, Message: "Invalid mnemonic phrase"}

	ErrDuplicateToken       = Errno{Code: 20301, Message: "Token already exists"}
	ErrInvalidAddressFormat = Errno{Code: 20302, Message: "Invalid address format"}
	ErrMissingRequiredField = Errno{Code: 20303, Message: "Missing required field"}
)

// Probe errors (30000+). Always downgraded by callers, never fatal for a batch.
var (
	ErrProbeTimeout     = Errno{Code: 30001, Message: "Chain probe timed out"}
	ErrProbeUnavailable = Errno{Code: 30002, Message: "Chain probe unavailable"}
)
