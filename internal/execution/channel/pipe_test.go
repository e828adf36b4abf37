package channel_test

import (
	"context"
	"io"
	"testing"

	"github.com/lambda-feedback/isolate/internal/execution/channel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipePair_CarriesMessagesBothWays(t *testing.T) {
	p, err := channel.NewPipePair()
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()

	go func() {
		_ = channel.WriteMessage(ctx, p.Parent.Writer, "to child")
	}()

	msg, err := channel.ReadMessage[string](ctx, p.Child.Reader)
	require.NoError(t, err)
	assert.Equal(t, "to child", msg)

	go func() {
		_ = channel.WriteMessage(ctx, p.Child.Writer, "to parent")
	}()

	msg, err = channel.ReadMessage[string](ctx, p.Parent.Reader)
	require.NoError(t, err)
	assert.Equal(t, "to parent", msg)
}

func TestPipePair_CloseChildYieldsEOF(t *testing.T) {
	p, err := channel.NewPipePair()
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.CloseChild())

	_, err = channel.ReadFrame(p.Parent.Reader)
	assert.Equal(t, io.EOF, err)
}

func TestPipePair_EndpointIDs(t *testing.T) {
	p, err := channel.NewPipePair()
	require.NoError(t, err)
	defer p.Close()

	p2c, c2p := p.EndpointIDs()
	assert.Equal(t, "3", p2c)
	assert.Equal(t, "4", c2p)
	assert.Len(t, p.ExtraFiles(), 2)
}

func TestPipePair_CloseIsIdempotent(t *testing.T) {
	p, err := channel.NewPipePair()
	require.NoError(t, err)

	assert.NoError(t, p.Close())
	assert.NoError(t, p.Close())
}

func TestOpenEndpoint_Invalid(t *testing.T) {
	_, err := channel.OpenEndpoint("nope", "p2c")
	assert.ErrorIs(t, err, channel.ErrInvalidEndpoint)

	_, err = channel.OpenEndpoint("-1", "p2c")
	assert.ErrorIs(t, err, channel.ErrInvalidEndpoint)
}
