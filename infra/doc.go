// Package infra holds the technical adapters of the responder: the MQTT
// client, SQL store, audit backends and metrics exporters. Adapters depend
// only on the interfaces declared under core.
package infra
