package policy

import (
	"fmt"
	"os"
	"time"

	units "github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors ClientPolicy's fields in a YAML-friendly shape
// (duration and size strings instead of time.Duration/int64), matching the
// teacher's config-file convention of human-readable values.
type fileConfig struct {
	User             string `yaml:"user"`
	Password         string `yaml:"password"`
	ClusterName      string `yaml:"cluster_name"`
	TendInterval     string `yaml:"tend_interval"`
	Timeout          string `yaml:"timeout"`
	LoginTimeout     string `yaml:"login_timeout"`
	MaxSocketIdle    string `yaml:"max_socket_idle"`
	MinConnsPerNode  int    `yaml:"min_conns_per_node"`
	MaxConnsPerNode  int    `yaml:"max_conns_per_node"`
	ConnPoolsPerNode int    `yaml:"conn_pools_per_node"`
	MaxErrorRate     float64 `yaml:"max_error_rate"`
	ErrorRateWindow  int    `yaml:"error_rate_window"`
	RackAware        bool   `yaml:"rack_aware"`
	RackID           int    `yaml:"rack_id"`

	Metrics struct {
		Enable             bool   `yaml:"enable"`
		ReportDir          string `yaml:"report_dir"`
		ReportSizeLimit    string `yaml:"report_size_limit"`
		Interval           string `yaml:"interval"`
		IntervalIterations int    `yaml:"interval_iterations"`
		LatencyColumns     int    `yaml:"latency_columns"`
		LatencyShift       int    `yaml:"latency_shift"`
	} `yaml:"metrics"`
}

// LoadFile reads a YAML config file and overlays it onto a fresh
// DefaultClientPolicy (spec §6 configuration surface).
func LoadFile(path string) (*ClientPolicy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("policy: parse config: %w", err)
	}

	cp := DefaultClientPolicy()
	cp.User = fc.User
	cp.Password = fc.Password
	cp.ClusterName = fc.ClusterName
	if fc.MinConnsPerNode > 0 {
		cp.MinConnsPerNode = fc.MinConnsPerNode
	}
	if fc.MaxConnsPerNode > 0 {
		cp.MaxConnsPerNode = fc.MaxConnsPerNode
	}
	if fc.ConnPoolsPerNode > 0 {
		cp.ConnPoolsPerNode = fc.ConnPoolsPerNode
	}
	if fc.MaxErrorRate > 0 {
		cp.MaxErrorRate = fc.MaxErrorRate
	}
	if fc.ErrorRateWindow > 0 {
		cp.ErrorRateWindow = fc.ErrorRateWindow
	}
	cp.RackAware = fc.RackAware
	cp.RackID = fc.RackID

	if d, err := parseDuration(fc.TendInterval); err == nil && d > 0 {
		cp.TendInterval = d
	}
	if d, err := parseDuration(fc.Timeout); err == nil && d > 0 {
		cp.Timeout = d
	}
	if d, err := parseDuration(fc.LoginTimeout); err == nil && d > 0 {
		cp.LoginTimeout = d
	}
	if d, err := parseDuration(fc.MaxSocketIdle); err == nil && d > 0 {
		cp.MaxSocketIdle = d
	}

	cp.Metrics.Enable = fc.Metrics.Enable
	if fc.Metrics.ReportDir != "" {
		cp.Metrics.ReportDir = fc.Metrics.ReportDir
	}
	if fc.Metrics.ReportSizeLimit != "" {
		if _, err := units.FromHumanSize(fc.Metrics.ReportSizeLimit); err != nil {
			return nil, fmt.Errorf("policy: report_size_limit: %w", err)
		}
		cp.Metrics.ReportSizeLimit = fc.Metrics.ReportSizeLimit
	}
	if d, err := parseDuration(fc.Metrics.Interval); err == nil && d > 0 {
		cp.Metrics.Interval = d
	}
	if fc.Metrics.IntervalIterations > 0 {
		cp.Metrics.IntervalIterations = fc.Metrics.IntervalIterations
	}
	if fc.Metrics.LatencyColumns > 0 {
		cp.Metrics.LatencyColumns = fc.Metrics.LatencyColumns
	}
	if fc.Metrics.LatencyShift > 0 {
		cp.Metrics.LatencyShift = fc.Metrics.LatencyShift
	}

	return cp, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// ReportSizeLimitBytes resolves the human-readable size string to bytes.
func (m *MetricsPolicy) ReportSizeLimitBytes() int64 {
	n, err := units.FromHumanSize(m.ReportSizeLimit)
	if err != nil {
		return 0
	}
	return n
}
