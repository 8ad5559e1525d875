package aerr

// ResultCode is the finite, stable set of error kinds a command can raise.
// Values are internal identifiers, not wire result codes (see
// ServerResultCode for the server's numeric result codes, which map onto
// these via FromServerCode).
type ResultCode int

const (
	OK ResultCode = iota
	Timeout
	Client
	Connection
	AsyncConnection
	InvalidNode
	NoMoreConnections
	Cluster
	NamespaceNotFound
	RecordNotFound
	RecordAlreadyExists
	GenerationMismatch
	KeyMismatch
	BinNameTooLong
	Param
	UDF
	BatchFailed
	TxnFailed
	TxnAlreadyCommitted
	TxnAlreadyAborted
	MRTAborted
	QueueFull
	Unavailable
	Unknown
)

var names = map[ResultCode]string{
	OK:                  "OK",
	Timeout:             "TIMEOUT",
	Client:              "CLIENT",
	Connection:          "CONNECTION",
	AsyncConnection:     "ASYNC_CONNECTION",
	InvalidNode:         "INVALID_NODE",
	NoMoreConnections:   "NO_MORE_CONNECTIONS",
	Cluster:             "CLUSTER",
	NamespaceNotFound:   "NAMESPACE_NOT_FOUND",
	RecordNotFound:      "RECORD_NOT_FOUND",
	RecordAlreadyExists: "RECORD_ALREADY_EXISTS",
	GenerationMismatch:  "GENERATION_MISMATCH",
	KeyMismatch:         "KEY_MISMATCH",
	BinNameTooLong:      "BIN_NAME_TOO_LONG",
	Param:               "PARAM",
	UDF:                 "UDF",
	BatchFailed:         "BATCH_FAILED",
	TxnFailed:           "TXN_FAILED",
	TxnAlreadyCommitted: "TXN_ALREADY_COMMITTED",
	TxnAlreadyAborted:   "TXN_ALREADY_ABORTED",
	MRTAborted:          "MRT_ABORTED",
	QueueFull:           "QUEUE_FULL",
	Unavailable:         "UNAVAILABLE",
	Unknown:             "UNKNOWN",
}

func (c ResultCode) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return "UNKNOWN"
}

// Retryable reports whether the command loop may consume this error kind
// locally and retry, per spec §7. The caller must also check the deadline
// and iteration budget; Retryable only classifies the kind.
func (c ResultCode) Retryable() bool {
	switch c {
	case Timeout, Connection, AsyncConnection, InvalidNode, Cluster, Unavailable:
		return true
	default:
		return false
	}
}

// ServerResultCode is the numeric code carried in the message header.
type ServerResultCode int

const (
	ServerOK                  ServerResultCode = 0
	ServerGenericError        ServerResultCode = 1
	ServerKeyNotFound         ServerResultCode = 2
	ServerGenerationError     ServerResultCode = 3
	ServerParamError          ServerResultCode = 4
	ServerKeyExistsError      ServerResultCode = 5
	ServerBinExistsError      ServerResultCode = 6
	ServerClusterKeyMismatch  ServerResultCode = 7
	ServerServerMemError      ServerResultCode = 8
	ServerTimeout             ServerResultCode = 9
	ServerAlwaysForbidden     ServerResultCode = 10
	ServerPartitionUnavail    ServerResultCode = 11
	ServerBinTypeError        ServerResultCode = 12
	ServerRecordTooBig        ServerResultCode = 13
	ServerKeyBusy             ServerResultCode = 14
	ServerScanAbort           ServerResultCode = 15
	ServerUnsupportedFeature  ServerResultCode = 16
	ServerBinNotFound         ServerResultCode = 17
	ServerDeviceOverload      ServerResultCode = 18
	ServerKeyMismatch         ServerResultCode = 19
	ServerInvalidNamespace    ServerResultCode = 20
	ServerBinNameTooLong      ServerResultCode = 21
	ServerFailForbidden       ServerResultCode = 22
	ServerTxnAlreadyAborted   ServerResultCode = 23
	ServerTxnAlreadyCommitted ServerResultCode = 24
	ServerTxnFailed           ServerResultCode = 28
	ServerUDFBadResponse      ServerResultCode = 100
)

// FromServerCode maps a wire result code to the client's internal taxonomy.
func FromServerCode(code ServerResultCode) ResultCode {
	switch code {
	case ServerOK:
		return OK
	case ServerKeyNotFound:
		return RecordNotFound
	case ServerGenerationError:
		return GenerationMismatch
	case ServerKeyExistsError:
		return RecordAlreadyExists
	case ServerKeyMismatch:
		return KeyMismatch
	case ServerBinNameTooLong:
		return BinNameTooLong
	case ServerParamError, ServerBinTypeError:
		return Param
	case ServerTimeout:
		return Timeout
	case ServerPartitionUnavail, ServerDeviceOverload:
		return Cluster
	case ServerInvalidNamespace:
		return NamespaceNotFound
	case ServerUDFBadResponse:
		return UDF
	case ServerTxnAlreadyAborted:
		return TxnAlreadyAborted
	case ServerTxnAlreadyCommitted:
		return TxnAlreadyCommitted
	case ServerTxnFailed:
		return TxnFailed
	default:
		return Unknown
	}
}
