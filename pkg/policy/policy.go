// Package policy collects the per-operation and client-wide tunables that
// govern timeouts, retries, replica selection, and consistency levels
// (spec §6).
package policy

import (
	"crypto/tls"
	"time"

	"github.com/cuemby/aeroclient/pkg/types"
)

// ConsistencyLevel controls how many replicas must agree on a read.
type ConsistencyLevel int

const (
	ConsistencyOne ConsistencyLevel = iota
	ConsistencyAll
)

// CommitLevel controls how many replicas must ack a write before it is
// considered durable from the client's perspective.
type CommitLevel int

const (
	CommitAll CommitLevel = iota
	CommitMaster
)

// GenerationPolicy controls whether a write is conditioned on the record's
// current generation.
type GenerationPolicy int

const (
	GenIgnore GenerationPolicy = iota
	GenEQ
	GenGT
)

// BasePolicy holds the fields shared by every per-operation policy.
type BasePolicy struct {
	Timeout             time.Duration
	SocketTimeout       time.Duration
	TotalTimeout        time.Duration
	MaxRetries          int
	SleepBetweenRetries time.Duration
	ReplicaPolicy       int // cluster.ReplicaPolicy, duplicated here to avoid an import cycle
	PreferredRack       int
	SendKey             bool
	FailOnClusterChange bool
}

func defaultBase() BasePolicy {
	return BasePolicy{
		Timeout:             1 * time.Second,
		SocketTimeout:       30 * time.Second,
		TotalTimeout:        1 * time.Second,
		MaxRetries:          2,
		SleepBetweenRetries: time.Millisecond,
	}
}

// ReadPolicy governs single-record get/exists/header requests.
type ReadPolicy struct {
	BasePolicy
	Consistency  ConsistencyLevel
	LinearizeRead bool
}

func DefaultReadPolicy() *ReadPolicy {
	return &ReadPolicy{BasePolicy: defaultBase()}
}

// WritePolicy governs put/delete/operate requests.
type WritePolicy struct {
	BasePolicy
	Commit     CommitLevel
	GenPolicy  GenerationPolicy
	Generation uint32
	DurableDelete bool
	CreateOnly bool

	// Expiration sets the record's TTL on write. Defaults to
	// TTLServerDefault, which leaves expiration to the namespace config.
	Expiration types.TTL
}

func DefaultWritePolicy() *WritePolicy {
	return &WritePolicy{BasePolicy: defaultBase(), Expiration: types.TTLServerDefault}
}

// BatchPolicy governs a batch of single-record requests sent as one
// wire unit, fanned out per-node.
type BatchPolicy struct {
	BasePolicy
	Concurrency   int
	AllowPartialResults bool
}

func DefaultBatchPolicy() *BatchPolicy {
	p := &BatchPolicy{BasePolicy: defaultBase(), Concurrency: 8}
	return p
}

// ScanPolicy governs a full-namespace/set scan.
type ScanPolicy struct {
	BasePolicy
	RecordsPerSecond int
	MaxRecords       uint64
	Concurrency      int
	IncludeBinData   bool
	PredExp          *PredExp
}

func DefaultScanPolicy() *ScanPolicy {
	return &ScanPolicy{BasePolicy: defaultBase(), Concurrency: 4, IncludeBinData: true}
}

// QueryPolicy governs a secondary-index query.
type QueryPolicy struct {
	ScanPolicy
	Filter *Filter
}

func DefaultQueryPolicy() *QueryPolicy {
	return &QueryPolicy{ScanPolicy: *DefaultScanPolicy()}
}

// TxnPolicy governs a multi-record transaction's verify/commit timeouts.
type TxnPolicy struct {
	Timeout         time.Duration
	MonitorLifetime time.Duration
}

func DefaultTxnPolicy() *TxnPolicy {
	return &TxnPolicy{Timeout: 10 * time.Second, MonitorLifetime: 60 * time.Second}
}

// InfoPolicy governs ad hoc info-protocol requests.
type InfoPolicy struct {
	Timeout time.Duration
}

func DefaultInfoPolicy() *InfoPolicy {
	return &InfoPolicy{Timeout: time.Second}
}

// MetricsPolicy governs the file-based metrics writer (spec §4.10).
// Latency buckets are power-of-two wide: bucket 0 covers
// [0, 2^LatencyShift) ms and bucket i > 0 covers
// [2^(i*LatencyShift), 2^((i+1)*LatencyShift)) ms, for LatencyColumns
// buckets, the last of which also takes every longer latency.
type MetricsPolicy struct {
	Enable             bool
	ReportDir          string
	ReportSizeLimit    string // human-readable, e.g. "10MB", parsed via go-units
	Interval           time.Duration
	IntervalIterations int // Collector ticks (Interval apart) between file snapshots
	LatencyColumns     int
	LatencyShift       int
}

func DefaultMetricsPolicy() *MetricsPolicy {
	return &MetricsPolicy{
		ReportDir:          ".",
		ReportSizeLimit:    "100MB",
		Interval:           time.Minute,
		IntervalIterations: 30,
		LatencyColumns:     7,
		LatencyShift:       1,
	}
}

// ClientPolicy is the top-level, cluster-wide configuration (spec §6).
type ClientPolicy struct {
	User, Password   string
	ClusterName      string
	TendInterval     time.Duration
	Timeout          time.Duration
	LoginTimeout     time.Duration
	MaxSocketIdle    time.Duration
	MinConnsPerNode  int
	MaxConnsPerNode  int
	ConnPoolsPerNode int
	MaxErrorRate     float64
	ErrorRateWindow  int
	RackAware        bool
	RackID           int
	FailIfNotConnected bool

	// TLSConfig, when non-nil, upgrades every node connection (command and
	// info) to TLS before the auth handshake (state TLS_CONNECT). Cipher
	// selection is left to the standard library defaults; this client does
	// not expose cipher-suite tuning.
	TLSConfig *tls.Config

	ReadPolicyDefault  *ReadPolicy
	WritePolicyDefault *WritePolicy
	BatchPolicyDefault *BatchPolicy
	ScanPolicyDefault  *ScanPolicy
	QueryPolicyDefault *QueryPolicy
	TxnPolicyDefault   *TxnPolicy
	InfoPolicyDefault  *InfoPolicy
	Metrics            *MetricsPolicy
}

// DefaultClientPolicy returns the baseline configuration the teacher's own
// config defaults mirror: conservative timeouts, small pools, metrics off
// until explicitly enabled.
func DefaultClientPolicy() *ClientPolicy {
	return &ClientPolicy{
		TendInterval:     time.Second,
		Timeout:          30 * time.Second,
		LoginTimeout:     5 * time.Second,
		MaxSocketIdle:    55 * time.Second,
		MinConnsPerNode:  1,
		MaxConnsPerNode:  100,
		ConnPoolsPerNode: 1,
		MaxErrorRate:     100,
		ErrorRateWindow:  1,

		ReadPolicyDefault:  DefaultReadPolicy(),
		WritePolicyDefault: DefaultWritePolicy(),
		BatchPolicyDefault: DefaultBatchPolicy(),
		ScanPolicyDefault:  DefaultScanPolicy(),
		QueryPolicyDefault: DefaultQueryPolicy(),
		TxnPolicyDefault:   DefaultTxnPolicy(),
		InfoPolicyDefault:  DefaultInfoPolicy(),
		Metrics:            DefaultMetricsPolicy(),
	}
}
