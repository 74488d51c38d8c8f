package jsruntime

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/dop251/goja"
)

func toGojaValue(vm *goja.Runtime, data []byte) goja.Value {
	var retValMap map[string]any
	if err := json.Unmarshal(data, &retValMap); err == nil {
		return vm.ToValue(retValMap)
	}
	var retValAny any
	if err := json.Unmarshal(data, &retValAny); err == nil {
		return vm.ToValue(retValAny)
	}
	if utf8.Valid(data) {
		return vm.ToValue(string(data))
	}
	return vm.ToValue(data)
}

// exportJSON marshals a JS value the way JSON.stringify would for plain data.
func exportJSON(v goja.Value) ([]byte, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return []byte("null"), nil
	}
	return json.Marshal(v.Export())
}
