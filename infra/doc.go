// Package infra holds the adapters behind the core interfaces: the connect
// transport, matrix file readers, the sqlite household backend, metric sinks,
// the MQTT progress publisher and the household trace log. Core packages
// never import infra.
package infra
