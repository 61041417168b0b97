// Package version carries the semantic version of the module.
package version

// SemVer is the current version of the module.
const SemVer = "0.1.0"
