package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// WeatherName is the tool name for the demo weather lookup.
const WeatherName = "current_weather"

// WeatherInput is the model-facing argument schema for current_weather.
type WeatherInput struct {
	Location string `json:"location" jsonschema_description:"The city and state/country (e.g., \"San Francisco, CA\" or \"London, UK\")"`
}

// Weather is a canned demo tool kept around for end-to-end testing of
// the tool-calling path without any downstream dependencies.
type Weather struct{}

// NewWeather creates the current_weather adapter.
func NewWeather() *Weather { return &Weather{} }

func (w *Weather) Name() string { return WeatherName }

func (w *Weather) Description() string {
	return "Get the weather in a given location."
}

func (w *Weather) define(g *genkit.Genkit) ai.Tool { return defineTool[WeatherInput](g, w) }

func (w *Weather) Invoke(_ context.Context, args map[string]any, _ RequestContext) (string, error) {
	input, err := decodeArgs[WeatherInput](args)
	if err != nil {
		return "", &ToolError{Kind: KindInvalidArguments, Message: err.Error()}
	}
	if strings.TrimSpace(input.Location) == "" {
		return "", &ToolError{Kind: KindInvalidArguments, Message: "location must not be empty"}
	}
	return fmt.Sprintf("The weather in %s is sunny", input.Location), nil
}
