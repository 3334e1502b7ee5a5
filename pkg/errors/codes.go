package errors

import (
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
// Codes are namespaced by module prefix ("COMMON", "DS", "MOL", "TRN", "INFRA").
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal       ErrorCode = "COMMON_001"
	ErrCodeBadRequest     ErrorCode = "COMMON_002"
	ErrCodeNotFound       ErrorCode = "COMMON_005"
	ErrCodeConflict       ErrorCode = "COMMON_006"
	ErrCodeTimeout        ErrorCode = "COMMON_009"
	ErrCodeValidation     ErrorCode = "COMMON_010"
	ErrCodeSerialization  ErrorCode = "COMMON_011"
	ErrCodeCanceled       ErrorCode = "COMMON_012"
	ErrCodeNotImplemented ErrorCode = "COMMON_016"
)

// Dataset Module Error Codes
const (
	ErrCodeUnsupportedDataset    ErrorCode = "DS_001"
	ErrCodeInvalidTripletConfig  ErrorCode = "DS_002"
	ErrCodeEmptyPartition        ErrorCode = "DS_003"
	ErrCodeDatasetFetchFailed    ErrorCode = "DS_004"
	ErrCodeDatasetParseFailed    ErrorCode = "DS_005"
	ErrCodeStoreInvariant        ErrorCode = "DS_006"
	ErrCodeIndexOutOfRange       ErrorCode = "DS_007"
	ErrCodeEmptyLoader           ErrorCode = "DS_008"
	ErrCodeSplitConfigInvalid    ErrorCode = "DS_009"
	ErrCodeMinorityClassMissing  ErrorCode = "DS_010"
)

// Molecule Module Error Codes
const (
	ErrCodeMoleculeInvalidSMILES       ErrorCode = "MOL_001"
	ErrCodeFingerprintGenerationFailed ErrorCode = "MOL_007"
)

// Training Module Error Codes
const (
	ErrCodeCheckpointFailed   ErrorCode = "TRN_001"
	ErrCodeReportFailed       ErrorCode = "TRN_002"
	ErrCodeShapeMismatch      ErrorCode = "TRN_003"
	ErrCodeCheckpointNotFound ErrorCode = "TRN_004"
)

// Infrastructure Error Codes
const (
	ErrCodeCacheError     ErrorCode = "INFRA_001"
	ErrCodeStorageError   ErrorCode = "INFRA_002"
	ErrCodeMessagingError ErrorCode = "INFRA_003"
	ErrCodeConfigInvalid  ErrorCode = "INFRA_004"
)

// Short aliases used at call sites.
const (
	CodeInternal             = ErrCodeInternal
	CodeInvalidParam         = ErrCodeBadRequest
	CodeNotFound             = ErrCodeNotFound
	CodeInvalidState         = ErrCodeConflict
	CodeCanceled             = ErrCodeCanceled
	CodeNotImplemented       = ErrCodeNotImplemented
	CodeUnsupportedDataset   = ErrCodeUnsupportedDataset
	CodeInvalidTripletConfig = ErrCodeInvalidTripletConfig
	CodeEmptyPartition       = ErrCodeEmptyPartition
	CodeDatasetFetchFailed   = ErrCodeDatasetFetchFailed
	CodeCheckpointFailed     = ErrCodeCheckpointFailed
	CodeReportFailed         = ErrCodeReportFailed
	CodeOK                   = ErrorCode("OK")
	CodeUnknown              = ErrorCode("UNKNOWN")
)

// ErrorCodeExitStatus maps ErrorCodes to process exit statuses used by the CLI.
// 2 is a usage or configuration problem, 3 an input data problem, 1 anything else.
var ErrorCodeExitStatus = map[ErrorCode]int{
	ErrCodeBadRequest:           2,
	ErrCodeValidation:           2,
	ErrCodeConfigInvalid:        2,
	ErrCodeUnsupportedDataset:   2,
	ErrCodeInvalidTripletConfig: 2,
	ErrCodeSplitConfigInvalid:   2,
	ErrCodeNotImplemented:       2,

	ErrCodeEmptyPartition:        3,
	ErrCodeDatasetFetchFailed:    3,
	ErrCodeDatasetParseFailed:    3,
	ErrCodeStoreInvariant:        3,
	ErrCodeEmptyLoader:           3,
	ErrCodeMinorityClassMissing:  3,
	ErrCodeMoleculeInvalidSMILES: 3,

	ErrCodeCanceled: 130,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:       "internal error",
	ErrCodeBadRequest:     "invalid parameter",
	ErrCodeNotFound:       "resource not found",
	ErrCodeConflict:       "invalid state",
	ErrCodeTimeout:        "operation timed out",
	ErrCodeValidation:     "validation failed",
	ErrCodeSerialization:  "serialization failed",
	ErrCodeCanceled:       "operation canceled",
	ErrCodeNotImplemented: "not implemented",

	ErrCodeUnsupportedDataset:   "unsupported dataset",
	ErrCodeInvalidTripletConfig: "invalid triplet dataset configuration",
	ErrCodeEmptyPartition:       "label partition is empty",
	ErrCodeDatasetFetchFailed:   "failed to fetch dataset",
	ErrCodeDatasetParseFailed:   "failed to parse dataset",
	ErrCodeStoreInvariant:       "fingerprint store invariant violated",
	ErrCodeIndexOutOfRange:      "index out of range",
	ErrCodeEmptyLoader:          "data loader produced no batches",
	ErrCodeSplitConfigInvalid:   "invalid split configuration",
	ErrCodeMinorityClassMissing: "no records with label 1",

	ErrCodeMoleculeInvalidSMILES:       "invalid SMILES",
	ErrCodeFingerprintGenerationFailed: "fingerprint generation failed",

	ErrCodeCheckpointFailed:   "failed to save checkpoint",
	ErrCodeReportFailed:       "failed to write training report",
	ErrCodeShapeMismatch:      "tensor shape mismatch",
	ErrCodeCheckpointNotFound: "checkpoint not found",

	ErrCodeCacheError:     "cache error",
	ErrCodeStorageError:   "object storage error",
	ErrCodeMessagingError: "messaging error",
	ErrCodeConfigInvalid:  "invalid configuration",
}

// ExitStatusForCode returns the process exit status for an ErrorCode.
func ExitStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeExitStatus[code]; ok {
		return status
	}
	return 1
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsUsageError returns true if the ErrorCode signals a configuration or
// invocation mistake rather than a runtime failure.
func IsUsageError(code ErrorCode) bool {
	return ExitStatusForCode(code) == 2
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 1 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
