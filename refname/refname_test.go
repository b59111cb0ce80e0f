package refname

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeSnapshot is an in-memory refname.Snapshot used to test Validate
// without pulling in the root reftable package.
type fakeSnapshot struct {
	live []string
}

func (f fakeSnapshot) Exists(name string) (bool, error) {
	for _, n := range f.live {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeSnapshot) ScanLivePrefixed(prefix string, fn func(string) (bool, error)) error {
	names := append([]string(nil), f.live...)
	sort.Strings(names)
	for _, n := range names {
		if !strings.HasPrefix(n, prefix) {
			continue
		}
		cont, err := fn(n)
		if err != nil || !cont {
			return err
		}
	}
	return nil
}

func TestValidateLexical(t *testing.T) {
	require.NoError(t, ValidateLexical("refs/heads/main"))
	require.Error(t, ValidateLexical(""))
	require.Error(t, ValidateLexical("refs/heads/"))
	require.Error(t, ValidateLexical("refs//main"))
	require.Error(t, ValidateLexical("refs/./main"))
	require.Error(t, ValidateLexical("refs/../main"))
}

func TestValidateRejectsFileOverDirectoryConflict(t *testing.T) {
	snap := fakeSnapshot{live: []string{"refs/heads/main"}}
	err := Validate(snap, Modification{Add: []string{"refs/heads/main/x"}})
	require.Error(t, err)
}

func TestValidateRejectsDirectoryOverFileConflict(t *testing.T) {
	snap := fakeSnapshot{live: []string{"refs/heads/main/x"}}
	err := Validate(snap, Modification{Add: []string{"refs/heads/main"}})
	require.Error(t, err)
}

func TestValidateAllowsConflictWhenExistingIsDeleted(t *testing.T) {
	snap := fakeSnapshot{live: []string{"refs/heads/main"}}
	err := Validate(snap, Modification{
		Add: []string{"refs/heads/main/x"},
		Del: []string{"refs/heads/main"},
	})
	require.NoError(t, err)
}

func TestValidateAllowsUnrelatedNames(t *testing.T) {
	snap := fakeSnapshot{live: []string{"refs/heads/main"}}
	err := Validate(snap, Modification{Add: []string{"refs/heads/other"}})
	require.NoError(t, err)
}
