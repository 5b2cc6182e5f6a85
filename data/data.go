// Package data bundles the IETF/NIST leap-seconds.list the builtin
// leap second table is generated from.
package data

import _ "embed"

// LeapSecondsList is the raw content of leap-seconds.list
//
//go:embed leap-seconds.list
var LeapSecondsList []byte
