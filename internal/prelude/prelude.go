// Package prelude holds the intrinsic declarations every index starts with:
// the base object class, the iteration and exception hierarchies,
// superglobals and a handful of core functions and constants.
package prelude

import _ "embed"

// Path is the unit path the prelude is analyzed under. It never names a file
// on disk.
const Path = "<prelude>"

//go:embed prelude.php
var Source []byte
