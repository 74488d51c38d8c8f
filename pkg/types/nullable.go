// Package types holds the host-facing data model of an embedding session: the configuration
// value, the taxonomy error and the sealed session result.
package types

// Nullable is implemented by values that distinguish "absent" from the zero value.
type Nullable interface {
	IsNil() bool
}
