package wire

import "fmt"

// ErrorCode is the RPC error code carried in error responses.
type ErrorCode int

const (
	// CodeNoError indicates no error.
	CodeNoError ErrorCode = 0

	// CodeInvalidRequest indicates a malformed request.
	CodeInvalidRequest ErrorCode = 1

	// CodeMethodNotFound indicates the method is not exposed on the path.
	CodeMethodNotFound ErrorCode = 2

	// CodeInvalidParams indicates parameters of the wrong shape or type.
	CodeInvalidParams ErrorCode = 3

	// CodeInternalError indicates a failure inside the callee.
	CodeInternalError ErrorCode = 4

	// CodeParseError indicates the message could not be decoded.
	CodeParseError ErrorCode = 5

	// CodeMethodCallTimeout indicates the call did not complete in time.
	CodeMethodCallTimeout ErrorCode = 6

	// CodeMethodCallCancelled indicates the call was cancelled.
	CodeMethodCallCancelled ErrorCode = 7

	// CodeMethodCallException indicates the method itself failed.
	CodeMethodCallException ErrorCode = 8

	// CodeUnknown indicates an unclassified error.
	CodeUnknown ErrorCode = 9

	// CodeUserCode is the first application-defined code.
	CodeUserCode ErrorCode = 32
)

// String returns the error code name.
func (c ErrorCode) String() string {
	switch c {
	case CodeNoError:
		return "NO_ERROR"
	case CodeInvalidRequest:
		return "INVALID_REQUEST"
	case CodeMethodNotFound:
		return "METHOD_NOT_FOUND"
	case CodeInvalidParams:
		return "INVALID_PARAMS"
	case CodeInternalError:
		return "INTERNAL_ERROR"
	case CodeParseError:
		return "PARSE_ERROR"
	case CodeMethodCallTimeout:
		return "METHOD_CALL_TIMEOUT"
	case CodeMethodCallCancelled:
		return "METHOD_CALL_CANCELLED"
	case CodeMethodCallException:
		return "METHOD_CALL_EXCEPTION"
	case CodeUnknown:
		return "UNKNOWN"
	default:
		if c >= CodeUserCode {
			return fmt.Sprintf("USER_CODE(%d)", int(c))
		}
		return "UNKNOWN"
	}
}

// RPCError is the error part of a response.
//
// CBOR encoding:
//
//	{
//	  1: code,     // int
//	  2: message   // string
//	}
type RPCError struct {
	Code    ErrorCode `cbor:"1,keyasint" json:"code"`
	Message string    `cbor:"2,keyasint,omitempty" json:"message,omitempty"`
}

// NewRPCError creates an RPC error.
func NewRPCError(code ErrorCode, message string) *RPCError {
	return &RPCError{Code: code, Message: message}
}

// Error implements the error interface, so a remote failure can be
// returned from Go calls as-is.
func (e *RPCError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code.String()
}
