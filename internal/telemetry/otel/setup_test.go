package otel

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestNewProviders_EmptyEndpoint(t *testing.T) {
	ctx := context.Background()
	for _, endpoint := range []string{"", "   "} {
		providers, err := NewProviders(ctx, endpoint, "test-service", false)
		if err != nil {
			t.Fatalf("NewProviders(%q): %v", endpoint, err)
		}
		if providers.TracerProvider == nil || providers.MeterProvider == nil || providers.LoggerProvider == nil {
			t.Fatal("providers should all be non-nil")
		}
		if err := providers.Shutdown(ctx); err != nil {
			t.Errorf("shutdown should be no-op for empty endpoint, got error: %v", err)
		}
	}
}

func TestParseEndpoint(t *testing.T) {
	testCases := []struct {
		name     string
		endpoint string
		override bool
		want     Target
		err      bool
	}{
		{"bare host port", "localhost:4317", false, Target{"localhost:4317", true}, false},
		{"http", "http://collector:4317", false, Target{"collector:4317", true}, false},
		{"https uses tls", "https://collector:4317", false, Target{"collector:4317", false}, false},
		{"https insecure override", "https://collector:4317", true, Target{"collector:4317", true}, false},
		{"path dropped", "http://collector:4317/v1/traces", false, Target{"collector:4317", true}, false},
		{"missing host", "http://", false, Target{}, true},
		{"malformed", "http://[invalid", false, Target{}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseEndpoint(tc.endpoint, tc.override)
			if tc.err {
				if err == nil {
					t.Fatalf("ParseEndpoint(%q) should return error", tc.endpoint)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEndpoint(%q): %v", tc.endpoint, err)
			}
			if got != tc.want {
				t.Errorf("ParseEndpoint(%q) = %+v, want %+v", tc.endpoint, got, tc.want)
			}
		})
	}
}

func TestSetGlobal_WithProviders(t *testing.T) {
	ctx := context.Background()
	providers, err := NewProviders(ctx, "", "test-service", false)
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	providers.SetGlobal()

	if otel.GetTracerProvider() != providers.TracerProvider {
		t.Error("TracerProvider should be installed globally")
	}
	if otel.GetMeterProvider() != providers.MeterProvider {
		t.Error("MeterProvider should be installed globally")
	}
}
