package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi/apigatewaymanagementapiiface"
	"github.com/tj/assert"
)

type fakeAPI struct {
	apigatewaymanagementapiiface.ApiGatewayManagementApiAPI

	posted  [][]byte
	deleted []string
	err     error
}

func (f *fakeAPI) PostToConnectionWithContext(_ aws.Context, input *apigatewaymanagementapi.PostToConnectionInput, _ ...request.Option) (*apigatewaymanagementapi.PostToConnectionOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.posted = append(f.posted, input.Data)
	return &apigatewaymanagementapi.PostToConnectionOutput{}, nil
}

func (f *fakeAPI) DeleteConnectionWithContext(_ aws.Context, input *apigatewaymanagementapi.DeleteConnectionInput, _ ...request.Option) (*apigatewaymanagementapi.DeleteConnectionOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deleted = append(f.deleted, aws.StringValue(input.ConnectionId))
	return &apigatewaymanagementapi.DeleteConnectionOutput{}, nil
}

func TestClient(t *testing.T) {
	ctx := context.Background()

	t.Run("post", func(t *testing.T) {
		api := &fakeAPI{}
		client := New(api)
		assert.NoError(t, client.Post(ctx, "abc", []byte("hello")))
		assert.Equal(t, [][]byte{[]byte("hello")}, api.posted)
	})

	t.Run("delete", func(t *testing.T) {
		api := &fakeAPI{}
		client := New(api)
		assert.NoError(t, client.Delete(ctx, "abc"))
		assert.Equal(t, []string{"abc"}, api.deleted)
	})

	t.Run("post error wraps", func(t *testing.T) {
		api := &fakeAPI{err: errors.New("boom")}
		client := New(api)
		assert.Error(t, client.Post(ctx, "abc", nil))
	})
}

func TestIsGone(t *testing.T) {
	gone := awserr.NewRequestFailure(awserr.New(apigatewaymanagementapi.ErrCodeGoneException, "gone", nil), 410, "req-1")
	assert.True(t, IsGone(gone))

	forbidden := awserr.NewRequestFailure(awserr.New("ForbiddenException", "forbidden", nil), 403, "req-2")
	assert.False(t, IsGone(forbidden))

	assert.False(t, IsGone(nil))
	assert.False(t, IsGone(errors.New("dial tcp: timeout")))

	t.Run("wrapped", func(t *testing.T) {
		client := New(&fakeAPI{err: gone})
		err := client.Post(context.Background(), "abc", nil)
		assert.True(t, IsGone(err))
	})
}
