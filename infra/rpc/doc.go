// Package rpc carries the matrix cache and household store across process
// boundaries as connect unary procedures over HTTP/2 cleartext. Messages are
// plain structs encoded with a JSON codec. Clients implement the same
// interfaces as the in-process services and run every call through
// remote.Invoke.
package rpc
