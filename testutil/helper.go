package testutil

import (
	"encoding/hex"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/twinfer/kbinxml/pkg/tree"
)

// MustHex decodes a hex dump. Whitespace and newlines are ignored so fixtures
// can be grouped by word.
func MustHex(t testing.TB, dump string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.Join(strings.Fields(dump), ""))
	if err != nil {
		t.Fatalf("bad hex fixture: %v", err)
	}
	return b
}

// DocumentOptions compares documents by content, ignoring parent links and
// treating nil and empty slices alike.
var DocumentOptions = cmp.Options{
	cmpopts.IgnoreUnexported(tree.Element{}, tree.Document{}),
	cmpopts.EquateEmpty(),
}

// DiffDocuments returns a readable diff of two documents, or "" when they
// hold the same tree and settings.
func DiffDocuments(want, got *tree.Document) string {
	if diff := cmp.Diff(want.Root(), got.Root(), DocumentOptions); diff != "" {
		return diff
	}
	return cmp.Diff(want, got, DocumentOptions)
}

// ConvertToInt64 converts various numeric types to int64 for comparison.
// Returns the int64 value and a boolean indicating success.
func ConvertToInt64(i any) (int64, bool) {
	switch v := i.(type) {
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
		return 0, false
	case int:
		return int64(v), true
	case int64:
		return v, true
	case uint64:
		if v <= math.MaxInt64 {
			return int64(v), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// NumericComparer treats integers decoded as float64 (JSON) or uint64 (CBOR)
// as equal to the same int.
var NumericComparer = cmp.FilterValues(func(x, y any) bool {
	_, xOk := ConvertToInt64(x)
	_, yOk := ConvertToInt64(y)
	return xOk && yOk
}, cmp.Comparer(func(x, y any) bool {
	xInt, _ := ConvertToInt64(x)
	yInt, _ := ConvertToInt64(y)
	return xInt == yInt
}))

// DiffStructured compares the keys of want against the same keys of got,
// treating numbers by value. Keys only present in got are ignored.
func DiffStructured(want, got map[string]any) string {
	return cmp.Diff(want, FilterMapKeys(got, want), NumericComparer)
}

// FilterMapKeys recursively creates a new map from 'source' containing only keys present in 'reference'.
func FilterMapKeys(source map[string]any, reference map[string]any) map[string]any {
	result := make(map[string]any)
	for key, refVal := range reference {
		if srcVal, ok := source[key]; ok {
			if refSubMap, refIsMap := refVal.(map[string]any); refIsMap {
				if srcSubMap, srcIsMap := srcVal.(map[string]any); srcIsMap {
					result[key] = FilterMapKeys(srcSubMap, refSubMap)
				} else {
					result[key] = srcVal // type mismatch, will be caught by cmp.Diff
				}
			} else {
				result[key] = srcVal
			}
		}
	}
	return result
}
