package payloaddao

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/tj/assert"
)

func TestDAO(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	dao := New(client, 0)

	t.Run("put and get verbatim", func(t *testing.T) {
		payload := json.RawMessage(`{"query":"subscription{messaged}","variables":{"id":1}}`)
		assert.NoError(t, dao.Put(ctx, "s1", payload))

		got, err := dao.Get(ctx, "s1")
		assert.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("missing record", func(t *testing.T) {
		_, err := dao.Get(ctx, "nope")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("delete many", func(t *testing.T) {
		assert.NoError(t, dao.Put(ctx, "s2", json.RawMessage(`{}`)))
		assert.NoError(t, dao.Delete(ctx, "s1", "s2"))

		_, err := dao.Get(ctx, "s1")
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.NoError(t, dao.Delete(ctx))
	})
}
