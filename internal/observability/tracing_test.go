package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracing_Stdout(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracing(context.Background(), "stdout", "orchestt", "test", "DEV", &buf)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "render diagram")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, buf.String(), "render diagram")
	assert.Contains(t, buf.String(), "orchestt")
}

func TestInitTracing_None(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), "none", "orchestt", "test", "DEV", nil)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	_, err = InitTracing(context.Background(), "zipkin", "orchestt", "test", "DEV", nil)
	assert.Error(t, err)
}
