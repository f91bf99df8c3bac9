// Package pipectx defines the processing context the scheduler consumes:
// channel/feature configuration and the tunable parameters shared by
// every pipeline stage.
package pipectx
