package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNew_SpansReachProcessor(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	obs := New("upsell-test", WithSpanProcessor(recorder), WithSampleRatio(1))
	t.Cleanup(obs.Shutdown)

	_, span := obs.StartSpan(context.Background(), "upsell.GetUpsellMetadata", attribute.Int("limit", 4))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "upsell.GetUpsellMetadata", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), attribute.Int("limit", 4))

	var service string
	for _, kv := range ended[0].Resource().Attributes() {
		if kv.Key == "service.name" {
			service = kv.Value.AsString()
		}
	}
	assert.Equal(t, "upsell-test", service)
}

func TestWithSampleRatio(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		want  float64
	}{
		{"valid", 0.5, 0.5},
		{"full", 1, 1},
		{"zero keeps default", 0, DefaultSampleRatio},
		{"above one keeps default", 2, DefaultSampleRatio},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := options{sampleRatio: DefaultSampleRatio}
			WithSampleRatio(tt.ratio)(&o)
			assert.Equal(t, tt.want, o.sampleRatio)
		})
	}
}

func TestNewTraceExporter(t *testing.T) {
	// the exporter dials lazily, so construction succeeds without a collector
	exporter, err := NewTraceExporter(context.Background(), "localhost:4318", true)
	require.NoError(t, err)
	assert.NoError(t, exporter.Shutdown(context.Background()))
}

func TestNoop_TracerNeverNil(t *testing.T) {
	var nilObs *Observability
	assert.NotNil(t, nilObs.Tracer())
	assert.NotNil(t, NewNoop().Tracer())
}
