// Package handlers provides command handler functions for latticectl.
//
// Each file covers one resource:
// - node.go: cluster nodes and the cluster overview (node ls, node info, info)
// - stream.go: open cluster streams (stream ls)
// - leader.go: the leader board and candidacies (leader ls, info, run, withdraw)
//
// Handlers use the cobra RunE signature, fetch through the client package
// and print through the display package. List commands support --watch.
package handlers
