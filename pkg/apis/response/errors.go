package response

var messages = map[ErrCode]string{
	ErrCodeMalformedJSON:              "The JSON you provided was not well-formed or did not validate against our published format.",
	ErrCodeRequestBody:                "Request body error",
	ErrCodeResourceExists:             "Resource %s already exists.",
	ErrCodeResourceNotFound:           "Resource %s not found.",
	ErrCodeLegalActionNotFound:        "Legal action not found.",
	ErrCodeDeviceNotFound:             "Device %s not found.",
	ErrCodeDeviceNotConnect:           "Device %s is not connected.",
	ErrCodeDeviceOperatorUnSupported:  "Device operator %s is not supported.",
	ErrCodeTooManyJsonPatchOperations: "The JSON patch has %d operations, more than the %d allowed.",
	ErrCodeVariableValueInvalid:       "Value of variable %s is invalid.",
	ErrCodePlcOperation:               "PLC %s failed: %s.",
	ErrCodeRequestInvalid:             "Request is invalid: %s.",
}

// !!! IMPORTANT PLEASE READ FIRST !!!
// You SHOULD add new code at the end of enum firstly.

var ErrMalformedJSON = &responseError{
	Code:    ErrCodeMalformedJSON,
	Message: messages[ErrCodeMalformedJSON],
}

var ErrRequestBody = &responseError{
	Code:    ErrCodeRequestBody,
	Message: messages[ErrCodeRequestBody],
}

var ErrLegalActionNotFound = &responseError{
	Code:    ErrCodeLegalActionNotFound,
	Message: messages[ErrCodeLegalActionNotFound],
}
