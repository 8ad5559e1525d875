// Package cluster implements cluster membership, the partition-map cache,
// node lifecycle, and the tend loop that keeps both consistent with a
// churning server cluster (spec §3, §4.2-§4.3, §4.5).
package cluster

import "fmt"

// Address is one way to reach a node: a hostname/IP pair, a port, and an
// optional TLS name. A node may carry several (primary, alternate,
// services-alternate) — spec §3.
type Address struct {
	Host    string
	IP      string
	Port    int
	TLSName string
}

func (a Address) String() string {
	if a.IP != "" {
		return fmt.Sprintf("%s:%d", a.IP, a.Port)
	}
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}
