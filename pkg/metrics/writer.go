package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// schemaVersion tags the file-report line format (spec.md §4.10).
const schemaVersion = 1

// LatencySnapshot is one operation type's bucket counts at report time.
type LatencySnapshot struct {
	Type    string
	Buckets []uint64
}

// NodeSnapshot is one node's connection and error state at report time.
type NodeSnapshot struct {
	Name, Host, Port string
	SyncConns        int
	AsyncConns       int
	Errors, Timeouts uint64
	Latency          []LatencySnapshot
}

// ClusterSnapshot is one full report line's worth of state.
type ClusterSnapshot struct {
	Timestamp          time.Time
	ClusterName        string
	CPUPercent         float64
	MemKB              uint64
	InvalidNodeCount   uint64
	CommandCount       uint64
	RetryCount         uint64
	DelayQueueTimeouts uint64
	Nodes              []NodeSnapshot
}

// FileWriter appends line-oriented snapshots to a report directory,
// rotating to a fresh timestamp-named file once the current one exceeds
// sizeLimitBytes (spec.md §4.10).
type FileWriter struct {
	mu         sync.Mutex
	dir        string
	sizeLimit  int64
	columns    int
	shift      int
	file       *os.File
	written    int64
}

// NewFileWriter opens (or creates) the report directory and the first
// report file, writing its header line.
func NewFileWriter(dir string, sizeLimitBytes int64, columns, shift int) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("metrics: create report dir: %w", err)
	}
	w := &FileWriter{dir: dir, sizeLimit: sizeLimitBytes, columns: columns, shift: shift}
	if err := w.rotate(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *FileWriter) rotate() error {
	if w.file != nil {
		_ = w.file.Close()
	}
	name := fmt.Sprintf("aeroclient-metrics-%d.log", time.Now().UnixNano())
	f, err := os.OpenFile(filepath.Join(w.dir, name), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("metrics: open report file: %w", err)
	}
	w.file = f
	w.written = 0

	header := fmt.Sprintf("schema=%d timestamp=%d columns=%d shift=%d\n",
		schemaVersion, time.Now().Unix(), w.columns, w.shift)
	n, err := f.WriteString(header)
	w.written += int64(n)
	return err
}

// WriteSnapshot appends one report line, rotating first if the current
// file has already exceeded the configured size limit.
func (w *FileWriter) WriteSnapshot(s ClusterSnapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.sizeLimit > 0 && w.written >= w.sizeLimit {
		if err := w.rotate(); err != nil {
			return err
		}
	}

	line := formatSnapshot(s)
	n, err := w.file.WriteString(line)
	w.written += int64(n)
	return err
}

func formatSnapshot(s ClusterSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d cluster[%s,%.1f,%d,%d,%d,%d,%d",
		s.Timestamp.Unix(), s.ClusterName, s.CPUPercent, s.MemKB,
		s.InvalidNodeCount, s.CommandCount, s.RetryCount, s.DelayQueueTimeouts)

	for _, n := range s.Nodes {
		fmt.Fprintf(&b, ",node[%s,%s,%s,%d,%d,%d,%d", n.Name, n.Host, n.Port,
			n.SyncConns, n.AsyncConns, n.Errors, n.Timeouts)
		for _, lat := range n.Latency {
			fmt.Fprintf(&b, ",latency[%s", lat.Type)
			for _, bucket := range lat.Buckets {
				fmt.Fprintf(&b, "[%d]", bucket)
			}
			b.WriteString("]")
		}
		b.WriteString("]")
	}
	b.WriteString("]\n")
	return b.String()
}

// Close flushes and closes the current report file.
func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Close()
}
