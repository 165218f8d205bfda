package convert

import (
	"fmt"
	"sort"

	"github.com/wdoppenberg/ag-ui/internal/uip"
)

// StateDeltaToPatches converts an ARP state delta map into RFC 6902 "add"
// patches, one per key. Keys are sorted for deterministic
// output; map iteration order is otherwise unspecified in Go.
func StateDeltaToPatches(delta map[string]any) []uip.JSONPatch {
	if len(delta) == 0 {
		return nil
	}
	keys := make([]string, 0, len(delta))
	for k := range delta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	patches := make([]uip.JSONPatch, 0, len(keys))
	for _, k := range keys {
		patches = append(patches, uip.JSONPatch{
			Op:    "add",
			Path:  "/" + k,
			Value: delta[k],
		})
	}
	return patches
}

// PatchesToStateDelta reverses StateDeltaToPatches for "add" patches with
// scalar or JSON-compatible values. Patches with
// an op other than "add" are ignored; Path is expected in "/{key}" form.
func PatchesToStateDelta(patches []uip.JSONPatch) map[string]any {
	out := make(map[string]any, len(patches))
	for _, p := range patches {
		if p.Op != "add" || len(p.Path) < 2 || p.Path[0] != '/' {
			continue
		}
		out[p.Path[1:]] = p.Value
	}
	return out
}

// SinglePatch builds a one-entry "add" patch list for a single state key.
func SinglePatch(key string, value any) []uip.JSONPatch {
	return []uip.JSONPatch{{Op: "add", Path: fmt.Sprintf("/%s", key), Value: value}}
}
