// Package version holds the release strings for the lattice binaries. The
// daemon and the operator CLI are versioned separately so the CLI can ship
// fixes without a daemon release. Both follow semver.
package version

// LatticedVersion is the latticed daemon version.
const LatticedVersion = "0.1.0-dev"

// LatticectlVersion is the latticectl CLI version.
const LatticectlVersion = "0.1.0-dev"

