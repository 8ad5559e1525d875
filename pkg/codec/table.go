// Package codec implements the bit-exact binary wire protocol: proto and
// message framing, the field and op tables, value encoding, and optional
// payload compression.
package codec

// ProtoType is the 1-byte proto-header type tag.
type ProtoType byte

const (
	ProtoInfo               ProtoType = 1
	ProtoAdmin              ProtoType = 2
	ProtoMessage            ProtoType = 3
	ProtoCompressedMessage  ProtoType = 4
)

const (
	ProtoHeaderSize = 8
	MsgHeaderSize   = 22
)

// Info1 bit assignments.
const (
	Info1Read             byte = 1 << 0
	Info1GetAll           byte = 1 << 1
	Info1BatchIndex       byte = 1 << 3
	Info1XDR              byte = 1 << 4
	Info1GetNoBinData     byte = 1 << 5
	Info1ReadModeAPAll    byte = 1 << 6
	Info1CompressResponse byte = 1 << 7
)

// Info2 bit assignments.
const (
	Info2Write         byte = 1 << 0
	Info2Delete        byte = 1 << 1
	Info2Generation    byte = 1 << 2
	Info2GenGT         byte = 1 << 3
	Info2DurableDelete byte = 1 << 4
	Info2CreateOnly    byte = 1 << 5
	Info2RespondAllOps byte = 1 << 7
)

// Info3 bit assignments.
const (
	Info3LastOfMulti       byte = 1 << 0
	Info3CommitMaster      byte = 1 << 1
	Info3PartitionDone     byte = 1 << 2
	Info3UpdateOnly        byte = 1 << 3
	Info3CreateOrReplace   byte = 1 << 4
	Info3ReplaceOnly       byte = 1 << 5
	Info3SCReadType        byte = 1 << 6
	Info3SCReadRelax       byte = 1 << 7
)

// FieldType is the canonical wire field-ID table. Unknown field IDs
// encountered while parsing are skipped with a warning, never a parse
// failure (spec §9 forwards-compatibility note).
type FieldType byte

const (
	FieldNamespace           FieldType = 0
	FieldSetName             FieldType = 1
	FieldKey                 FieldType = 2
	FieldDigest              FieldType = 4
	FieldTaskID              FieldType = 7
	FieldSocketTimeout       FieldType = 9
	FieldRecordsPerSecond    FieldType = 10
	FieldPartitionIDArray    FieldType = 11
	FieldDigestArray         FieldType = 12
	FieldMaxRecords          FieldType = 13
	FieldIndexRange          FieldType = 22
	FieldIndexFilter         FieldType = 23
	FieldIndexLimit          FieldType = 24
	FieldIndexOrder          FieldType = 25
	FieldIndexType           FieldType = 26
	FieldUDFPackageName      FieldType = 30
	FieldUDFFunction         FieldType = 31
	FieldUDFArgList          FieldType = 32
	FieldUDFOp               FieldType = 33
	FieldQueryBins           FieldType = 40
	FieldBatchIndex          FieldType = 41
	FieldPredExp             FieldType = 42
)

var knownFields = map[FieldType]string{
	FieldNamespace:        "namespace",
	FieldSetName:          "set",
	FieldKey:              "key",
	FieldDigest:           "digest",
	FieldTaskID:           "task-id",
	FieldSocketTimeout:    "socket-timeout",
	FieldRecordsPerSecond: "records-per-second",
	FieldPartitionIDArray: "partition-id-array",
	FieldDigestArray:      "digest-array",
	FieldMaxRecords:       "max-records",
	FieldIndexRange:       "index-range",
	FieldIndexFilter:      "index-filter",
	FieldIndexLimit:       "index-limit",
	FieldIndexOrder:       "index-order",
	FieldIndexType:        "index-type",
	FieldUDFPackageName:   "udf-file",
	FieldUDFFunction:      "udf-function",
	FieldUDFArgList:       "udf-arglist",
	FieldUDFOp:            "udf-op",
	FieldQueryBins:        "query-bins",
	FieldBatchIndex:       "batch-index",
	FieldPredExp:          "predicate-expression",
}

func (f FieldType) String() string {
	if n, ok := knownFields[f]; ok {
		return n
	}
	return "unknown"
}
