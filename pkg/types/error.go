package types

// ErrorCode is a four digit taxonomy code.
type ErrorCode string

const (
	CodeInitialization   ErrorCode = "1001"
	CodeInvalidConfig    ErrorCode = "1002"
	CodeNetwork          ErrorCode = "1003"
	CodeBridge           ErrorCode = "1004"
	CodeTimeout          ErrorCode = "1005"
	CodeCameraPermission ErrorCode = "1006"
)

// Subcodes are only defined for CodeNetwork and CodeBridge.
const (
	SubCodeNoConnection   = "01"
	SubCodeHostNotFound   = "02"
	SubCodeNetworkTimeout = "03"
	SubCodeCannotConnect  = "04"
	SubCodeConnectionLost = "05"
	SubCodeNetworkUnknown = "06"
	SubCodeUnauthorized   = "401"
)

var codeNames = map[ErrorCode]string{
	CodeInitialization:   "INITIALIZATION_ERROR",
	CodeInvalidConfig:    "INVALID_CONFIG",
	CodeNetwork:          "NETWORK_ERROR",
	CodeBridge:           "BRIDGE_ERROR",
	CodeTimeout:          "TIMEOUT",
	CodeCameraPermission: "CAMERA_PERMISSION",
}

// Name returns the symbolic name of the code, or an empty string for unknown codes.
func (c ErrorCode) Name() string {
	return codeNames[c]
}

// IsKnown reports whether c belongs to the closed taxonomy.
func (c ErrorCode) IsKnown() bool {
	_, ok := codeNames[c]
	return ok
}

// Error is the wire shape of a session failure.
type Error struct {
	Code    ErrorCode      `json:"code"`
	SubCode NullableString `json:"subCode"`
	Message string         `json:"message"`
}

// NewError builds an Error. Pass an empty subCode when the code has none.
func NewError(code ErrorCode, subCode, message string) Error {
	return Error{
		Code:    code,
		SubCode: NullableStringFrom(subCode),
		Message: message,
	}
}

// Detail renders "[code-subCode] message", or "[code] message" without a subcode.
func (e Error) Detail() string {
	if e.SubCode.IsNil() {
		return "[" + string(e.Code) + "] " + e.Message
	}
	return "[" + string(e.Code) + "-" + e.SubCode.String() + "] " + e.Message
}

// Error makes Error usable as a Go error.
func (e Error) Error() string {
	return e.Detail()
}
