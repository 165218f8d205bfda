package convert

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestStateDeltaPatchRoundTripProperty verifies that converting a state
// delta to "add" patches and back loses nothing: for any delta of scalar
// values, PatchesToStateDelta(StateDeltaToPatches(d)) == d.
func TestStateDeltaPatchRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("delta -> patches -> delta is the identity", prop.ForAll(
		func(delta map[string]string) bool {
			in := make(map[string]any, len(delta))
			for k, v := range delta {
				in[k] = v
			}

			back := PatchesToStateDelta(StateDeltaToPatches(in))
			if len(back) != len(in) {
				return false
			}
			for k, v := range in {
				got, ok := back[k]
				if !ok || got != v {
					return false
				}
			}
			return true
		},
		gen.MapOf(gen.Identifier(), gen.AlphaString()),
	))

	properties.Property("one patch per key, all op add, paths keyed", prop.ForAll(
		func(delta map[string]string) bool {
			in := make(map[string]any, len(delta))
			for k, v := range delta {
				in[k] = v
			}

			patches := StateDeltaToPatches(in)
			if len(patches) != len(in) {
				return false
			}
			for _, p := range patches {
				if p.Op != "add" {
					return false
				}
				if len(p.Path) < 2 || p.Path[0] != '/' {
					return false
				}
				if _, ok := in[p.Path[1:]]; !ok {
					return false
				}
			}
			return true
		},
		gen.MapOf(gen.Identifier(), gen.AlphaString()),
	))

	properties.TestingRun(t)
}

// TestDecodeToolResultTotalProperty verifies DecodeToolResult is total: any
// input string yields a non-nil map, and non-JSON input is preserved
// verbatim in the error record instead of failing.
func TestDecodeToolResultTotalProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("every input decodes to a non-nil map", prop.ForAll(
		func(content string) bool {
			out := DecodeToolResult(content)
			if out == nil {
				return false
			}
			if out["error_type"] == "JSON_DECODE_ERROR" {
				return out["raw_content"] == content
			}
			return true
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
