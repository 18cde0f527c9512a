package build

import "fmt"

// Severe is called on conditions that should be impossible given the
// invariants of the calling component. In a DEBUG build it panics
// immediately so the violation is caught close to its cause; in a release
// build it is non-fatal, since the caller is expected to keep running for
// other wallets/subwallets even if one invariant check surfaced a bug.
func Severe(v ...interface{}) {
	if DEBUG {
		panic(fmt.Sprint(v...))
	}
}

// Critical is like Severe but always panics, regardless of build type. It is
// reserved for corruption that must not be allowed to propagate silently,
// such as a key image that exists in two subwallets at once.
func Critical(v ...interface{}) {
	panic(fmt.Sprint(v...))
}
