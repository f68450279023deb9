package assistant

import (
	"context"
	"fmt"
	"iter"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"google.golang.org/genai"
)

// GeminiModel is a Model backed by the Gemini API.
type GeminiModel struct {
	client *genai.Client
	model  string
}

var _ Model = (*GeminiModel)(nil)

// NewGeminiModel creates a GeminiModel for the named model.
func NewGeminiModel(ctx context.Context, apiKey, model string) (*GeminiModel, error) {
	if apiKey == "" {
		return nil, ErrModelNotConfigured
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiModel{client: client, model: model}, nil
}

// Name returns the model name.
func (g *GeminiModel) Name() string {
	return g.model
}

// Converse streams one model turn.
func (g *GeminiModel) Converse(ctx context.Context, conv Conversation) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		config := &genai.GenerateContentConfig{}
		if conv.System != "" {
			config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: conv.System}}}
		}
		if decls := toFunctionDeclarations(conv.Tools); len(decls) > 0 {
			config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
		}

		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, toContents(conv.Messages), config) {
			if err != nil {
				yield(Chunk{}, err)
				return
			}
			for _, chunk := range chunksFromResponse(resp) {
				if !yield(chunk, nil) {
					return
				}
			}
		}
	}
}

// toContents maps the conversation onto Gemini contents. Consecutive tool
// results are grouped into a single user content, as the API expects.
func toContents(messages []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleAssistant:
			c := &genai.Content{Role: "model"}
			if msg.Content != "" {
				c.Parts = append(c.Parts, &genai.Part{Text: msg.Content})
			}
			for _, call := range msg.ToolCalls {
				c.Parts = append(c.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   call.ID,
					Name: call.Name,
					Args: call.Args,
				}})
			}
			if len(c.Parts) > 0 {
				contents = append(contents, c)
			}

		case RoleTool:
			if msg.ToolResult == nil {
				continue
			}
			part := &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       msg.ToolResult.CallID,
				Name:     msg.ToolResult.Name,
				Response: msg.ToolResult.Result,
			}}
			if n := len(contents); n > 0 && isFunctionResponses(contents[n-1]) {
				contents[n-1].Parts = append(contents[n-1].Parts, part)
				continue
			}
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{part}})

		default:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		}
	}
	return contents
}

func isFunctionResponses(c *genai.Content) bool {
	if c.Role != "user" || len(c.Parts) == 0 {
		return false
	}
	for _, p := range c.Parts {
		if p.FunctionResponse == nil {
			return false
		}
	}
	return true
}

// chunksFromResponse extracts text deltas and tool calls, skipping thoughts.
func chunksFromResponse(resp *genai.GenerateContentResponse) []Chunk {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	var chunks []Chunk
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		if part.Text != "" {
			chunks = append(chunks, Chunk{Text: part.Text})
		}
		if fc := part.FunctionCall; fc != nil {
			chunks = append(chunks, Chunk{ToolCall: &ToolCall{ID: fc.ID, Name: fc.Name, Args: fc.Args}})
		}
	}
	return chunks
}

// toFunctionDeclarations converts MCP tool declarations into Gemini ones.
func toFunctionDeclarations(tools []mcp.Tool) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decl := &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
		}
		if len(t.InputSchema.Properties) > 0 {
			decl.Parameters = toSchema(t.InputSchema.Properties, t.InputSchema.Required)
		}
		decls = append(decls, decl)
	}
	return decls
}

func toSchema(properties map[string]any, required []string) *genai.Schema {
	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(properties)),
		Required:   append([]string(nil), required...),
	}

	keys := make([]string, 0, len(properties))
	for k := range properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		prop, _ := properties[key].(map[string]any)
		s := &genai.Schema{Type: schemaType(prop["type"])}
		if desc, ok := prop["description"].(string); ok {
			s.Description = desc
		}
		if def, ok := prop["default"].(string); ok && def != "" {
			s.Description += fmt.Sprintf(" (default %q)", def)
		}
		s.Enum = enumValues(prop["enum"])
		schema.Properties[key] = s
	}
	return schema
}

func schemaType(raw any) genai.Type {
	switch raw {
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}
