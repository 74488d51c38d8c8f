package sandbox

import (
	"github.com/Masterminds/semver/v3"
	"github.com/tansive/flowbridge/internal/flowbridge/bridge"
)

// Version is the current version of the sandbox host.
// The version follows semantic versioning (MAJOR.MINOR.PATCH).
const Version = "0.1.0"

var clientConstraint = func() *semver.Constraints {
	c, err := semver.NewConstraint("^" + bridge.ProtocolVersion)
	if err != nil {
		panic(err)
	}
	return c
}()

// IsClientCompatible reports whether a client speaking the given protocol version can use
// this host. Invalid version strings are incompatible.
func IsClientCompatible(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return clientConstraint.Check(v)
}
