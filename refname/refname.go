// Package refname implements the hierarchical ref-naming rules a ref
// store enforces: a lexical check (no empty component, no "." or "..", no
// trailing "/") and a hierarchical non-conflict check (a ref and a
// directory of the same name can never coexist, git's long-standing
// "D/F conflict" rule) run against a pending batch of additions and
// deletions plus a table snapshot's current live refs.
//
// Grounded on original_source/c/refname.c's refname_is_safe/
// validate_ref_record walk, reshaped around a small Snapshot interface so
// this package does not import the root reftable package; the root
// package's Reader and MergedTable satisfy the interface.
package refname

import (
	"sort"
	"strings"

	"github.com/refstore/reftable/internal/base"
)

// Snapshot is the narrow view of a table (or merged table) the validator
// needs: point existence checks and a live-ref prefix scan. *reftable.Reader
// and *reftable.MergedTable both implement it.
type Snapshot interface {
	// Exists reports whether name is a live (non-deletion) ref.
	Exists(name string) (bool, error)

	// ScanLivePrefixed calls fn, in ascending name order, once for every
	// live ref whose name is prefixed by prefix, stopping early if fn
	// returns false or a non-nil error.
	ScanLivePrefixed(prefix string, fn func(name string) (bool, error)) error
}

// Modification bundles a pending batch of ref additions and deletions,
// the unit Validate checks as a whole.
type Modification struct {
	Add []string
	Del []string
}

func isValidComponent(c string) bool {
	return c != "" && c != "." && c != ".."
}

// ValidateLexical checks the lexical rule for a single name.
func ValidateLexical(name string) error {
	if name == "" || strings.HasSuffix(name, "/") {
		return base.RefnameErrorf("reftable: invalid refname %q", name)
	}
	for _, c := range strings.Split(name, "/") {
		if !isValidComponent(c) {
			return base.RefnameErrorf("reftable: invalid refname %q", name)
		}
	}
	return nil
}

func inSorted(sorted []string, name string) bool {
	i := sort.SearchStrings(sorted, name)
	return i < len(sorted) && sorted[i] == name
}

// Validate checks every added name in m against both the lexical and
// hierarchical non-conflict rules, using snap as the table's current view
// and m.Del as the set of
// existing refs this same batch is simultaneously removing (so a rename
// that deletes "a" while adding "a/b" in one modification is legal).
func Validate(snap Snapshot, m Modification) error {
	delSorted := append([]string(nil), m.Del...)
	sort.Strings(delSorted)

	for _, name := range m.Add {
		if err := ValidateLexical(name); err != nil {
			return err
		}

		parts := strings.Split(name, "/")
		for i := 1; i <= len(parts); i++ {
			prefix := strings.Join(parts[:i], "/")
			if inSorted(delSorted, prefix) {
				continue
			}
			exists, err := snap.Exists(prefix)
			if err != nil {
				return err
			}
			if exists {
				return base.NameConflictErrorf("reftable: %q conflicts with existing ref %q", name, prefix)
			}
		}

		var conflict string
		err := snap.ScanLivePrefixed(name+"/", func(existing string) (bool, error) {
			if inSorted(delSorted, existing) {
				return true, nil
			}
			conflict = existing
			return false, nil
		})
		if err != nil {
			return err
		}
		if conflict != "" {
			return base.NameConflictErrorf("reftable: %q conflicts with existing ref %q", name, conflict)
		}
	}
	return nil
}
