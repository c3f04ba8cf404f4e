package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMake(t *testing.T) {
	cases := map[string]string{
		"Steel & Metal":       "steel-metal",
		"  Industrial Pumps ": "industrial-pumps",
		"Café Équipement":     "cafe-equipement",
		"PVC--Pipes (4 inch)": "pvc-pipes-4-inch",
		"":                    "",
		"!!!":                 "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Make(in), in)
	}
}
