package command

import (
	"github.com/cuemby/aeroclient/pkg/aerr"
	"github.com/cuemby/aeroclient/pkg/cluster"
	"github.com/cuemby/aeroclient/pkg/types"
)

// Resolve exposes resolve for callers outside this package that submit
// their own async.Command (the async reactor has no node-resolution logic
// of its own; it drives whatever node it is handed).
func Resolve(c *cluster.Cluster, key *types.Key, replicaPolicy cluster.ReplicaPolicy, replicaIndex, preferredRack int) (*cluster.Node, int, error) {
	return resolve(c, key, replicaPolicy, replicaIndex, preferredRack)
}

// resolve picks the target node for key under the given replica policy,
// using the cluster's partition count and the namespace's partition table
// (spec §4.6 step 1).
func resolve(c *cluster.Cluster, key *types.Key, replicaPolicy cluster.ReplicaPolicy, replicaIndex, preferredRack int) (*cluster.Node, int, error) {
	pc := c.PartitionCount()
	if pc == 0 {
		return nil, 0, aerr.New(aerr.Cluster, "command: partition map not yet loaded")
	}
	digest, err := key.Digest()
	if err != nil {
		return nil, 0, aerr.Wrap(aerr.Param, err, "command: compute key digest")
	}
	pid := types.PartitionID(digest, pc)

	table := c.Table(key.Namespace)
	node := cluster.SelectReplica(table, pid, replicaPolicy, replicaIndex, preferredRack)
	if node == nil {
		return nil, pid, aerr.New(aerr.InvalidNode, "command: no node owns partition %d of namespace %q", pid, key.Namespace)
	}
	return node, pid, nil
}
