package contextdao

import (
	"testing"

	"github.com/tj/assert"
)

func TestFlatten(t *testing.T) {
	t.Run("default context", func(t *testing.T) {
		flat, err := Flatten(NewContext())
		assert.NoError(t, err)
		assert.Equal(t, map[string]string{
			FieldConnectionInitReceived: "__boolean__false",
			FieldAcknowledged:           "__boolean__false",
		}, flat)
	})

	t.Run("nested trees", func(t *testing.T) {
		c := NewContext()
		c.ConnectionInitReceived = true
		c.ConnectionParams = map[string]interface{}{
			"headers": map[string]interface{}{"authorization": "Bearer x"},
		}
		c.Extra = map[string]interface{}{
			"count": float64(42),
			"tags":  []interface{}{"admin", "user"},
			"note":  nil,
		}

		flat, err := Flatten(c)
		assert.NoError(t, err)
		assert.Equal(t, map[string]string{
			FieldConnectionInitReceived:               "__boolean__true",
			FieldAcknowledged:                         "__boolean__false",
			"connectionParams.headers.authorization":  "Bearer x",
			"extra.count":                             "__number__42",
			"extra.tags.0":                            "admin",
			"extra.tags.1":                            "user",
			"extra.note":                              "__null__",
		}, flat)
	})

	t.Run("subscriptions are not persisted", func(t *testing.T) {
		c := NewContext()
		c.Subscriptions["s1"] = true

		flat, err := Flatten(c)
		assert.NoError(t, err)
		for field := range flat {
			assert.NotContains(t, field, FieldSubscriptions)
		}
	})
}

func TestDecompress(t *testing.T) {
	t.Run("fidelity", func(t *testing.T) {
		c := NewContext()
		c.ConnectionInitReceived = true
		c.ConnectionParams = map[string]interface{}{
			"headers": map[string]interface{}{"authorization": "Bearer x"},
		}
		c.Extra = map[string]interface{}{
			"count": float64(42),
			"tags":  []interface{}{"admin", "user"},
			"note":  nil,
		}

		flat, err := Flatten(c)
		assert.NoError(t, err)

		rebuilt := Decompress(flat)
		assert.Equal(t, c.ConnectionInitReceived, rebuilt.ConnectionInitReceived)
		assert.Equal(t, c.Acknowledged, rebuilt.Acknowledged)
		assert.Equal(t, c.ConnectionParams, rebuilt.ConnectionParams)
		assert.Equal(t, c.Extra, rebuilt.Extra)
		assert.Equal(t, map[string]interface{}{}, rebuilt.Subscriptions)
	})

	t.Run("missing record yields defaults", func(t *testing.T) {
		c := Decompress(map[string]string{})
		assert.False(t, c.ConnectionInitReceived)
		assert.False(t, c.Acknowledged)
		assert.Nil(t, c.ConnectionParams)
		assert.Equal(t, map[string]interface{}{}, c.Extra)
	})

	t.Run("sparse arrays expand with holes", func(t *testing.T) {
		c := Decompress(map[string]string{
			"extra.items.0": "first",
			"extra.items.3": "fourth",
		})
		assert.Equal(t, []interface{}{"first", Undefined, Undefined, "fourth"}, c.Extra["items"])
	})

	t.Run("empty segments from double dots are dropped", func(t *testing.T) {
		c := Decompress(map[string]string{"extra..nested..value": "__number__7"})
		assert.Equal(t, map[string]interface{}{
			"nested": map[string]interface{}{"value": float64(7)},
		}, c.Extra)
	})

	t.Run("unrecognized top-level fields are dropped", func(t *testing.T) {
		c := Decompress(map[string]string{"bogus.field": "x"})
		assert.Equal(t, map[string]interface{}{}, c.Extra)
	})

	t.Run("scalar connectionParams", func(t *testing.T) {
		c := Decompress(map[string]string{FieldConnectionParams: "__null__"})
		assert.Nil(t, c.ConnectionParams)
	})
}
