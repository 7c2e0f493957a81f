package errors

var (
	ErrUnknown            = New(ERR_UNKNOWN, "unknown error")
	ErrInvalidArgument    = New(ERR_INVALID_ARGUMENT, "invalid argument")
	ErrNotFound           = New(ERR_NOT_FOUND, "not found")
	ErrProcessing         = New(ERR_PROCESSING, "error processing")
	ErrConfiguration      = New(ERR_CONFIGURATION, "configuration error")
	ErrContext            = New(ERR_CONTEXT, "context error")
	ErrContextCanceled    = New(ERR_CONTEXT_CANCELED, "context canceled")
	ErrError              = New(ERR_ERROR, "generic error")
	ErrInvalidFormat      = New(ERR_INVALID_FORMAT, "invalid format")
	ErrInvalidBlockPoW    = New(ERR_INVALID_BLOCK_POW, "invalid block proof of work")
	ErrInvalidGenesis     = New(ERR_INVALID_GENESIS, "invalid genesis")
	ErrInvalidTimestamp   = New(ERR_INVALID_BLOCK_TIMESTAMP, "invalid block timestamp")
	ErrInvalidCoinbase    = New(ERR_INVALID_BLOCK_COINBASE, "invalid block coinbase")
	ErrInvalidAncestry    = New(ERR_INVALID_ANCESTRY, "invalid ancestry")
	ErrUnfindableObject   = New(ERR_UNFINDABLE_OBJECT, "unfindable object")
	ErrUnknownObject      = New(ERR_UNKNOWN_OBJECT, "unknown object")
	ErrTxOutpoint         = New(ERR_INVALID_TX_OUTPOINT, "invalid tx outpoint")
	ErrTxSignature        = New(ERR_INVALID_TX_SIGNATURE, "invalid tx signature")
	ErrTxConservation     = New(ERR_INVALID_TX_CONSERVATION, "invalid tx conservation")
	ErrServiceUnavailable = New(ERR_SERVICE_UNAVAILABLE, "service unavailable")
	ErrServiceError       = New(ERR_SERVICE_ERROR, "service error")
	ErrStorageUnavailable = New(ERR_STORAGE_UNAVAILABLE, "storage unavailable")
	ErrStorageError       = New(ERR_STORAGE_ERROR, "storage error")
)

// errors initialization functions

func NewUnknownError(message string, params ...interface{}) error {
	return New(ERR_UNKNOWN, message, params...)
}
func NewInvalidArgumentError(message string, params ...interface{}) error {
	return New(ERR_INVALID_ARGUMENT, message, params...)
}
func NewNotFoundError(message string, params ...interface{}) error {
	return New(ERR_NOT_FOUND, message, params...)
}
func NewProcessingError(message string, params ...interface{}) error {
	return New(ERR_PROCESSING, message, params...)
}
func NewConfigurationError(message string, params ...interface{}) error {
	return New(ERR_CONFIGURATION, message, params...)
}
func NewContextError(message string, params ...interface{}) error {
	return New(ERR_CONTEXT, message, params...)
}
func NewContextCanceledError(message string, params ...interface{}) error {
	return New(ERR_CONTEXT_CANCELED, message, params...)
}
func NewError(message string, params ...interface{}) error {
	return New(ERR_ERROR, message, params...)
}
func NewInvalidFormatError(message string, params ...interface{}) error {
	return New(ERR_INVALID_FORMAT, message, params...)
}
func NewInvalidBlockPoWError(message string, params ...interface{}) error {
	return New(ERR_INVALID_BLOCK_POW, message, params...)
}
func NewInvalidGenesisError(message string, params ...interface{}) error {
	return New(ERR_INVALID_GENESIS, message, params...)
}
func NewInvalidTimestampError(message string, params ...interface{}) error {
	return New(ERR_INVALID_BLOCK_TIMESTAMP, message, params...)
}
func NewInvalidCoinbaseError(message string, params ...interface{}) error {
	return New(ERR_INVALID_BLOCK_COINBASE, message, params...)
}
func NewInvalidAncestryError(message string, params ...interface{}) error {
	return New(ERR_INVALID_ANCESTRY, message, params...)
}
func NewUnfindableObjectError(message string, params ...interface{}) error {
	return New(ERR_UNFINDABLE_OBJECT, message, params...)
}
func NewUnknownObjectError(message string, params ...interface{}) error {
	return New(ERR_UNKNOWN_OBJECT, message, params...)
}
func NewTxOutpointError(message string, params ...interface{}) error {
	return New(ERR_INVALID_TX_OUTPOINT, message, params...)
}
func NewTxSignatureError(message string, params ...interface{}) error {
	return New(ERR_INVALID_TX_SIGNATURE, message, params...)
}
func NewTxConservationError(message string, params ...interface{}) error {
	return New(ERR_INVALID_TX_CONSERVATION, message, params...)
}
func NewServiceUnavailableError(message string, params ...interface{}) error {
	return New(ERR_SERVICE_UNAVAILABLE, message, params...)
}
func NewServiceError(message string, params ...interface{}) error {
	return New(ERR_SERVICE_ERROR, message, params...)
}
func NewStorageUnavailableError(message string, params ...interface{}) error {
	return New(ERR_STORAGE_UNAVAILABLE, message, params...)
}
func NewStorageError(message string, params ...interface{}) error {
	return New(ERR_STORAGE_ERROR, message, params...)
}
