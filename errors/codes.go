package errors

import "strconv"

// ERR is the error code carried by every *Error.
type ERR int32

const (
	ERR_UNKNOWN          ERR = 0
	ERR_INVALID_ARGUMENT ERR = 1
	ERR_NOT_FOUND        ERR = 2
	ERR_PROCESSING       ERR = 3
	ERR_CONFIGURATION    ERR = 4
	ERR_CONTEXT          ERR = 5
	ERR_CONTEXT_CANCELED ERR = 6
	ERR_ERROR            ERR = 9

	// object and block validation
	ERR_INVALID_FORMAT          ERR = 10
	ERR_INVALID_BLOCK_POW       ERR = 11
	ERR_INVALID_GENESIS         ERR = 12
	ERR_INVALID_BLOCK_TIMESTAMP ERR = 13
	ERR_INVALID_BLOCK_COINBASE  ERR = 14
	ERR_INVALID_ANCESTRY        ERR = 15
	ERR_UNFINDABLE_OBJECT       ERR = 16
	ERR_UNKNOWN_OBJECT          ERR = 17

	// transaction validation
	ERR_INVALID_TX_OUTPOINT     ERR = 30
	ERR_INVALID_TX_SIGNATURE    ERR = 31
	ERR_INVALID_TX_CONSERVATION ERR = 32

	ERR_SERVICE_UNAVAILABLE ERR = 50
	ERR_SERVICE_ERROR       ERR = 51

	ERR_STORAGE_UNAVAILABLE ERR = 60
	ERR_STORAGE_ERROR       ERR = 61
)

var ERR_name = map[int32]string{
	0:  "UNKNOWN",
	1:  "INVALID_ARGUMENT",
	2:  "NOT_FOUND",
	3:  "PROCESSING",
	4:  "CONFIGURATION",
	5:  "CONTEXT",
	6:  "CONTEXT_CANCELED",
	9:  "ERROR",
	10: "INVALID_FORMAT",
	11: "INVALID_BLOCK_POW",
	12: "INVALID_GENESIS",
	13: "INVALID_BLOCK_TIMESTAMP",
	14: "INVALID_BLOCK_COINBASE",
	15: "INVALID_ANCESTRY",
	16: "UNFINDABLE_OBJECT",
	17: "UNKNOWN_OBJECT",
	30: "INVALID_TX_OUTPOINT",
	31: "INVALID_TX_SIGNATURE",
	32: "INVALID_TX_CONSERVATION",
	50: "SERVICE_UNAVAILABLE",
	51: "SERVICE_ERROR",
	60: "STORAGE_UNAVAILABLE",
	61: "STORAGE_ERROR",
}

func (x ERR) String() string {
	if name, ok := ERR_name[int32(x)]; ok {
		return name
	}

	return strconv.Itoa(int(x))
}

// IsProtocol reports whether the code is one that peers understand on the wire.
func (x ERR) IsProtocol() bool {
	return (x >= ERR_INVALID_FORMAT && x <= ERR_UNKNOWN_OBJECT) ||
		(x >= ERR_INVALID_TX_OUTPOINT && x <= ERR_INVALID_TX_CONSERVATION)
}
