package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_NoEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), "", true, "20260101-000000_deadbeef")
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	_, span := Tracer("test").Start(context.Background(), "vote.attempt")
	assert.False(t, span.SpanContext().IsValid(), "no-op spans carry no trace id")
	span.End()

	assert.NoError(t, shutdown(context.Background()))
}
