// Package rpc serves the volume and compute driver over gRPC so host
// runtimes in other processes can call it. Messages are
// google.protobuf.Struct values.
package rpc
