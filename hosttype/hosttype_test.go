package hosttype

import (
	"testing"

	"github.com/flowweaver/fw/model"
	"github.com/stretchr/testify/assert"
)

func TestInfer(t *testing.T) {
	cases := map[string]model.PortKind{
		"bool":             model.Boolean,
		"string":           model.String,
		"int":              model.Number,
		"float64":          model.Number,
		"[]string":         model.Array,
		"[3]int":           model.Array,
		"func(a int) bool": model.Func,
		"map[string]int":   model.Object,
		"struct{...}":       model.Object,
		"any":              model.Any,
		"interface{}":      model.Any,
		"*MyStruct":        model.Object,
		"MyStruct":         model.Object,
		"pkg.Thing":        model.Object,
	}
	for text, want := range cases {
		assert.Equal(t, want, Infer(text), "type text %q", text)
	}
}
