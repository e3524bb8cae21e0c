package contextdao

import (
	"testing"

	"github.com/tj/assert"
)

func TestEncodeValue(t *testing.T) {
	cases := []struct {
		name  string
		value interface{}
		want  string
	}{
		{"true", true, "__boolean__true"},
		{"false", false, "__boolean__false"},
		{"int", 42, "__number__42"},
		{"float", 42.5, "__number__42.5"},
		{"float whole", float64(42), "__number__42"},
		{"null", nil, "__null__"},
		{"undefined", Undefined, "__undefined__"},
		{"plain string", "hello", "hello"},
		{"ambiguous string", "true", "true"},
		{"empty string", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EncodeValue(tc.value)
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("unsupported type", func(t *testing.T) {
		_, err := EncodeValue(struct{}{})
		assert.Error(t, err)
	})
}

func TestDecodeValue(t *testing.T) {
	t.Run("round trips", func(t *testing.T) {
		for _, v := range []interface{}{true, false, float64(42), 42.5, nil, Undefined, "hello", "true", "", "42"} {
			encoded, err := EncodeValue(v)
			assert.NoError(t, err)
			assert.Equal(t, v, DecodeValue(encoded))
		}
	})

	t.Run("unknown tag falls back to post-tag content", func(t *testing.T) {
		assert.Equal(t, "stuff", DecodeValue("__weird__stuff"))
	})

	t.Run("unterminated tag is a plain string", func(t *testing.T) {
		assert.Equal(t, "__weird", DecodeValue("__weird"))
	})
}
