/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package pathcore

import (
	"github.com/pathjail/pathjail/pkg/errdefs"
)

// detranslate undoes the root prefix (or a mirror substitution) on a
// host-side path, handing back the guest-visible value. It is shared by
// the canonicalizer (which detranslates a symlink target it just read,
// with sanityCheck=false) and by Jail.Detranslate (the public entry
// point, typically with sanityCheck=true).
//
// changed reports whether path was actually rewritten, so callers that
// must mimic the C entry point's "0 if untouched" return can do so.
func detranslate(mirrors *Table, root string, path string, sanityCheck bool) (result string, changed bool, err error) {
	substituted, status, err := mirrors.Substitute(DirReal, path)
	if err != nil {
		return "", false, err
	}
	switch status {
	case StatusMatchedNoSubstitution:
		return path, false, nil
	case StatusSubstituted:
		return substituted, true, nil
	}

	if root == "" {
		// R == "/": every path already starts with R trivially.
		return path, false, nil
	}

	if !hasPathPrefix(path, root) {
		if sanityCheck {
			return "", false, errdefs.ErrDenied
		}
		return path, false, nil
	}

	stripped := path[len(root):]
	if stripped == "" {
		stripped = "/"
	}
	return stripped, true, nil
}

// hasPathPrefix reports whether path starts with prefix on a component
// boundary (prefix itself, or prefix followed by "/").
func hasPathPrefix(path, prefix string) bool {
	if len(prefix) > len(path) {
		return false
	}
	if path[:len(prefix)] != prefix {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}
