package compile

import (
	"reflect"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"pipegen/internal/types"
	"pipegen/runtime/rt"
)

// rtSymbols exposes the runtime support package to interpreted units, in the
// layout produced by `yaegi extract`.
var rtSymbols = interp.Exports{
	types.RuntimePath + "/rt": {
		"Completed":   reflect.ValueOf(rt.Completed),
		"Go":          reflect.ValueOf(rt.Go),
		"IsNoResult":  reflect.ValueOf(rt.IsNoResult),
		"NewContext":  reflect.ValueOf(rt.NewContext),
		"NewServices": reflect.ValueOf(rt.NewServices),
		"NoResult":    reflect.ValueOf(&rt.NoResult).Elem(),
		"Continue":    reflect.ValueOf(&rt.Continue).Elem(),

		"Context":  reflect.ValueOf((*rt.Context)(nil)),
		"Future":   reflect.ValueOf((*rt.Future)(nil)),
		"Services": reflect.ValueOf((*rt.Services)(nil)),
	},
}

// hostSymbols returns the table's exports minus packages the interpreter
// already provides.
func hostSymbols(tbl *types.Table) interp.Exports {
	out := interp.Exports{}
	for key, syms := range tbl.Exports() {
		if _, ok := stdlib.Symbols[key]; ok {
			continue
		}
		if _, ok := rtSymbols[key]; ok {
			continue
		}
		out[key] = syms
	}
	return out
}
