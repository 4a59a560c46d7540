package fares

import (
	"context"
	"encoding/json"
	"testing"
)

func TestTablePrice(t *testing.T) {
	t.Parallel()
	table := NewTable(nil)

	tests := []struct {
		name string
		city string
		want string
	}{
		{name: "exact lowercase", city: "berlin", want: "$499"},
		{name: "mixed case", city: "Berlin", want: "$499"},
		{name: "surrounding whitespace", city: "  London ", want: "$799"},
		{name: "tokyo", city: "tokyo", want: "$1400"},
		{name: "paris", city: "PARIS", want: "$899"},
		{name: "phonetic misspelling", city: "berlyn", want: "$499"},
		{name: "unlisted city", city: "atlantis", want: PriceUnknown},
		{name: "empty", city: "", want: PriceUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := table.Price(tt.city); got != tt.want {
				t.Errorf("Price(%q) = %q, want %q", tt.city, got, tt.want)
			}
		})
	}
}

func TestNewToolHandler(t *testing.T) {
	t.Parallel()
	tool := NewTool(NewTable(nil))

	t.Run("known city", func(t *testing.T) {
		t.Parallel()
		out, err := tool.Handler(context.Background(), `{"destination_city":"Berlin"}`)
		if err != nil {
			t.Fatalf("Handler() error: %v", err)
		}
		var res struct {
			DestinationCity string `json:"destination_city"`
			Price           string `json:"price"`
		}
		if err := json.Unmarshal([]byte(out), &res); err != nil {
			t.Fatalf("result is not valid JSON: %v", err)
		}
		if res.DestinationCity != "Berlin" {
			t.Errorf("destination_city = %q, want the argument echoed as given", res.DestinationCity)
		}
		if res.Price != "$499" {
			t.Errorf("price = %q, want %q", res.Price, "$499")
		}
	})

	t.Run("unlisted city prices as Unknown", func(t *testing.T) {
		t.Parallel()
		out, err := tool.Handler(context.Background(), `{"destination_city":"atlantis"}`)
		if err != nil {
			t.Fatalf("Handler() error: %v", err)
		}
		var res struct {
			Price string `json:"price"`
		}
		if err := json.Unmarshal([]byte(out), &res); err != nil {
			t.Fatalf("result is not valid JSON: %v", err)
		}
		if res.Price != PriceUnknown {
			t.Errorf("price = %q, want %q", res.Price, PriceUnknown)
		}
	})

	t.Run("malformed arguments", func(t *testing.T) {
		t.Parallel()
		if _, err := tool.Handler(context.Background(), `{not json`); err == nil {
			t.Fatal("Handler() with malformed args returned nil error")
		}
	})
}

func TestParametersSchema(t *testing.T) {
	t.Parallel()
	tool := NewTool(NewTable(nil))

	params := tool.Definition.Parameters
	if params["type"] != "object" {
		t.Errorf(`schema type = %v, want "object"`, params["type"])
	}
	props, ok := params["properties"].(map[string]any)
	if !ok {
		t.Fatalf("schema properties missing: %v", params)
	}
	if _, ok := props["destination_city"]; !ok {
		t.Error("schema properties missing destination_city")
	}
}
