package otel

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestNewProviders_EmptyEndpoint(t *testing.T) {
	ctx := context.Background()
	for _, endpoint := range []string{"", "   "} {
		providers, err := NewProviders(ctx, Config{Endpoint: endpoint, ServiceName: "tenantdesk-test"})
		if err != nil {
			t.Fatalf("NewProviders(%q): %v", endpoint, err)
		}
		if providers.TracerProvider == nil || providers.MeterProvider == nil || providers.LoggerProvider == nil {
			t.Errorf("providers = %+v, want all set", providers)
		}
		if err := providers.Shutdown(ctx); err != nil {
			t.Errorf("shutdown should be a no-op without an endpoint, got %v", err)
		}
	}
}

func TestParseEndpoint(t *testing.T) {
	testCases := []struct {
		name, endpoint string
		override       bool
		host           string
		insecure       bool
	}{
		{"bare host", "localhost:4317", false, "localhost:4317", true},
		{"http", "http://collector:4317", false, "collector:4317", true},
		{"path ignored", "http://collector:4317/v1/traces", false, "collector:4317", true},
		{"https", "https://collector:4317", false, "collector:4317", false},
		{"https insecure override", "https://collector:4317", true, "collector:4317", true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseEndpoint(tc.endpoint, tc.override)
			if err != nil {
				t.Fatalf("parseEndpoint: %v", err)
			}
			if got.host != tc.host || got.insecure != tc.insecure {
				t.Errorf("got %+v, want host=%s insecure=%v", got, tc.host, tc.insecure)
			}
		})
	}
}

func TestParseEndpoint_Invalid(t *testing.T) {
	for _, endpoint := range []string{"://invalid", "http://[invalid", "http://"} {
		if _, err := parseEndpoint(endpoint, false); err == nil {
			t.Errorf("parseEndpoint(%q) should fail", endpoint)
		}
	}
	if _, err := NewProviders(context.Background(), Config{Endpoint: "http://"}); err == nil {
		t.Error("NewProviders with missing host should fail")
	}
}

func TestSetGlobal(t *testing.T) {
	providers, err := NewProviders(context.Background(), Config{ServiceName: "tenantdesk-test"})
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	old := otel.GetTracerProvider()
	providers.SetGlobal()
	if otel.GetTracerProvider() == old {
		t.Error("TracerProvider should be updated")
	}
	if otel.GetTextMapPropagator() == nil {
		t.Error("propagator should be installed")
	}
}
