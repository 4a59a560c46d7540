// Package fares provides the built-in ticket pricing tool.
//
// The tool resolves a destination city to a return ticket price from a fixed
// fare table. Lookups are case-insensitive and fall back to phonetic matching
// so that transcribed speech ("Berlyn") still hits the right fare. A city
// without a fare resolves to "Unknown" rather than an error.
package fares

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/invopop/jsonschema"

	"github.com/farevoice/farevoice/internal/tools"
	"github.com/farevoice/farevoice/pkg/provider/llm"
)

// ToolName is the name the model uses to call the pricing tool.
const ToolName = "get_ticket_price"

// PriceUnknown is returned for destinations without a listed fare.
const PriceUnknown = "Unknown"

// defaultFares is the built-in fare table keyed by lowercase city name.
var defaultFares = map[string]string{
	"london": "$799",
	"paris":  "$899",
	"tokyo":  "$1400",
	"berlin": "$499",
}

// priceArgs is the JSON-decoded input for the pricing tool.
type priceArgs struct {
	// DestinationCity is the city the customer wants to travel to.
	DestinationCity string `json:"destination_city" jsonschema:"description=The city that the customer wants to travel to"`
}

// priceResult is the JSON-encoded output of the pricing tool.
type priceResult struct {
	DestinationCity string `json:"destination_city"`
	Price           string `json:"price"`
}

// Table is a fare lookup table with phonetic fallback matching.
type Table struct {
	fares map[string]string
}

// NewTable returns a Table over the given fares, keyed by lowercase city name.
// Pass nil to use the built-in table.
func NewTable(fares map[string]string) *Table {
	if fares == nil {
		fares = defaultFares
	}
	normalized := make(map[string]string, len(fares))
	for city, price := range fares {
		normalized[strings.ToLower(strings.TrimSpace(city))] = price
	}
	return &Table{fares: normalized}
}

// Price resolves city to a ticket price. The lookup is case-insensitive; when
// no exact entry matches, cities are compared phonetically so that common
// transcription misspellings still resolve. Unlisted cities price as
// [PriceUnknown]. Price never fails.
func (t *Table) Price(city string) string {
	key := strings.ToLower(strings.TrimSpace(city))
	if key == "" {
		return PriceUnknown
	}
	if price, ok := t.fares[key]; ok {
		return price
	}

	primary, secondary := matchr.DoubleMetaphone(key)
	for known, price := range t.fares {
		kp, ks := matchr.DoubleMetaphone(known)
		if primary != "" && (primary == kp || primary == ks) {
			return price
		}
		if secondary != "" && (secondary == kp || secondary == ks) {
			return price
		}
	}
	return PriceUnknown
}

// parametersSchema reflects priceArgs into the JSON Schema map attached to the
// tool definition.
func parametersSchema() map[string]any {
	reflector := jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
	}
	schema := reflector.Reflect(&priceArgs{})

	raw, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("fares: encode parameter schema: %v", err))
	}
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		panic(fmt.Sprintf("fares: decode parameter schema: %v", err))
	}
	delete(params, "$schema")
	return params
}

// NewTool wires the fare table into a registrable pricing tool.
func NewTool(table *Table) tools.Tool {
	return tools.Tool{
		Definition: llm.ToolDefinition{
			Name:        ToolName,
			Description: "Get the price of a return ticket to the destination city. Call this whenever you need to know the ticket price, for example when a customer asks 'How much is a ticket to this city'.",
			Parameters:  parametersSchema(),
		},
		Handler: makeHandler(table),
	}
}

// makeHandler returns the handler for the pricing tool.
func makeHandler(table *Table) func(context.Context, string) (string, error) {
	return func(_ context.Context, args string) (string, error) {
		var a priceArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("fares: %s: failed to parse arguments: %w", ToolName, err)
		}

		// The argument is echoed as the model gave it; only the table lookup
		// normalises case.
		res, err := json.Marshal(priceResult{
			DestinationCity: a.DestinationCity,
			Price:           table.Price(a.DestinationCity),
		})
		if err != nil {
			return "", fmt.Errorf("fares: %s: failed to encode result: %w", ToolName, err)
		}
		return string(res), nil
	}
}
