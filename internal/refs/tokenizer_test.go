package refs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	t.Run("branches and trailing semicolon", func(t *testing.T) {
		calls, err := Tokenize("XIC(A)[XIO(B),XIC(C.1)]OTE(D[2]);")
		require.NoError(t, err)
		require.Len(t, calls, 4)
		assert.Equal(t, "XIC", calls[0].Mnemonic)
		assert.Equal(t, []string{"C.1"}, calls[2].Operands)
		assert.Equal(t, "OTE", calls[3].Mnemonic)
		assert.Equal(t, []string{"D[2]"}, calls[3].Operands)
	})

	t.Run("nested expression operands", func(t *testing.T) {
		calls, err := Tokenize("CPT(Dest,(A+B)*ABS(C[1,2]))")
		require.NoError(t, err)
		require.Len(t, calls, 1)
		assert.Equal(t, []string{"Dest", "(A+B)*ABS(C[1,2])"}, calls[0].Operands)
	})

	t.Run("placeholders and whitespace", func(t *testing.T) {
		calls, err := Tokenize("  TON( Timer1 , ? , ? ) ")
		require.NoError(t, err)
		require.Len(t, calls, 1)
		assert.Equal(t, []string{"Timer1", "?", "?"}, calls[0].Operands)
	})

	t.Run("quoted strings keep commas", func(t *testing.T) {
		calls, err := Tokenize("MOV('a,b)',Dest)")
		require.NoError(t, err)
		require.Len(t, calls, 1)
		assert.Equal(t, []string{"'a,b)'", "Dest"}, calls[0].Operands)
	})

	t.Run("no operands", func(t *testing.T) {
		calls, err := Tokenize("NOP();AFI")
		require.NoError(t, err)
		require.Len(t, calls, 2)
		assert.Empty(t, calls[0].Operands)
		assert.Equal(t, "AFI", calls[1].Mnemonic)
	})

	t.Run("unbalanced keeps earlier calls", func(t *testing.T) {
		calls, err := Tokenize("XIC(A)OTE(B")
		assert.Error(t, err)
		require.Len(t, calls, 1)
		assert.Equal(t, "XIC", calls[0].Mnemonic)
	})

	t.Run("empty rung", func(t *testing.T) {
		calls, err := Tokenize("")
		assert.NoError(t, err)
		assert.Empty(t, calls)
	})
}

func TestOperandClassification(t *testing.T) {
	literals := []string{"?", "0", "-3", "1.5", "16#FF", "2#0000_0001", "'text'", "1.#QNAN", ".5"}
	for _, l := range literals {
		assert.True(t, isLiteral(l), l)
	}
	for _, p := range []string{"Motor1", "Motor1.Status[2].Run", "Local:1:I.Data.0", "Valve2[Idx+1]"} {
		assert.False(t, isLiteral(p), p)
		assert.True(t, isTagPath(p), p)
	}
	assert.False(t, isTagPath("A+B"))

	assert.Equal(t, []string{"Idx", "J"}, indexIdentifiers("Arr[Idx+1,J].Value"))
	assert.Equal(t, []string{"A", "B.1", "C"}, expressionIdentifiers("A + B.1 * ABS(C) MOD 16#10"))
	assert.Equal(t, []string{"Tbl[K]", "K"}, expressionIdentifiers("Tbl[K] > 2.5e3"))
}
