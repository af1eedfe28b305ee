package parser

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestTypeNames(t *testing.T) {
	names := newTypeNames()

	a := names.get("DINT")
	b := names.get(string([]byte("DINT")))
	assert.Equal(t, a, b)
	assert.Same(t, unsafe.StringData(a), unsafe.StringData(b))

	names.get("UDT_Motor")
	names.get("")
	assert.Len(t, names, 2)

	assert.Empty(t, newTypeNames(), "runs do not share tables")
}

func BenchmarkTypeNames(b *testing.B) {
	names := newTypeNames()
	types := []string{"BOOL", "DINT", "REAL", "TIMER", "UDT_Motor", "AOI_Valve"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		names.get(types[i%len(types)])
	}
}
