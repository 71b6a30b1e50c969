package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/cineo-ai/cineo-api/models"
	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// ScriptBreakdown is the structured JSON response requested from the model.
type ScriptBreakdown struct {
	Scenes []ScriptScene `json:"scenes" jsonschema_description:"An ordered list of 3 to 5 distinct scenes that tell the story."`
}

// ScriptScene is a single scene in the breakdown.
type ScriptScene struct {
	Title       string   `json:"title" jsonschema_description:"A short title for the scene"`
	Description string   `json:"description" jsonschema_description:"A visual description of the scene's setting and action"`
	Dialogue    []string `json:"dialogue" jsonschema_description:"Ordered dialogue lines in the form 'Character: line'"`
}

// GenerateSchema generates a JSON schema for structured outputs
func GenerateSchema[T any]() interface{} {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	return schema
}

// scriptBreakdownSchema is the cached schema
var scriptBreakdownSchema = GenerateSchema[ScriptBreakdown]()

// OpenAIScriptGenerator asks the chat completions API for a structured
// scene breakdown.
type OpenAIScriptGenerator struct {
	client openai.Client
}

func NewOpenAIScriptGenerator(apiKey string) *OpenAIScriptGenerator {
	return &OpenAIScriptGenerator{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
	}
}

func (g *OpenAIScriptGenerator) Generate(ctx context.Context, title, genre, description string) (*ScriptResult, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	prompt := fmt.Sprintf(`You are a screenwriter breaking a movie idea into scenes.

Movie Title: %s
Genre: %s
Idea: %s

Create a breakdown of 3 to 5 distinct scenes. For each scene provide:
- A short title
- A visual description of the setting and action
- A few dialogue lines, each in the form "Character: line"

Respond in JSON format with this structure:
{
  "scenes": [
    {"title": "...", "description": "...", "dialogue": ["Character 1: ...", "Character 2: ..."]}
  ]
}`, title, genre, description)

	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "script_breakdown",
		Description: openai.String("A scene-by-scene breakdown of a movie script"),
		Schema:      scriptBreakdownSchema,
		Strict:      openai.Bool(true),
	}

	chatCompletion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModelGPT4oMini,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: schemaParam,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(chatCompletion.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	rawResponse := chatCompletion.Choices[0].Message.Content
	if rawResponse == "" {
		return nil, fmt.Errorf("OpenAI returned empty response. Finish reason: %s", chatCompletion.Choices[0].FinishReason)
	}

	var breakdown ScriptBreakdown
	if err := json.Unmarshal([]byte(rawResponse), &breakdown); err != nil {
		// The model occasionally drifts off schema. Hand the raw text to
		// the planner's free-text parser rather than failing outright.
		log.Printf("Script response failed schema parse, falling back to text parsing: %v", err)
		return &ScriptResult{Text: rawResponse}, nil
	}

	scenes := make([]models.SceneSpec, 0, len(breakdown.Scenes))
	for i, s := range breakdown.Scenes {
		scenes = append(scenes, models.SceneSpec{
			SceneNumber: i + 1,
			Title:       s.Title,
			Description: s.Description,
			Dialogue:    s.Dialogue,
		})
	}
	return &ScriptResult{Scenes: scenes}, nil
}
