package chat

import (
	"context"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"
)

type VertexGemini struct {
	client *vertexgenai.Client
	model  *vertexgenai.GenerativeModel
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	m := c.GenerativeModel(modelName)
	return &VertexGemini{client: c, model: m}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

// Complete maps system messages to the model system instruction, all prior
// turns to chat history, and streams the reply for the final user turn,
// collected into a single string.
func (v *VertexGemini) Complete(ctx context.Context, msgs []Message) (string, error) {
	var system []string
	var turns []Message
	for _, m := range msgs {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}

	model := *v.model
	if len(system) > 0 {
		model.SystemInstruction = &vertexgenai.Content{
			Parts: []vertexgenai.Part{vertexgenai.Text(strings.Join(system, "\n\n"))},
		}
	}

	last := "..."
	if len(turns) > 0 {
		last = turns[len(turns)-1].Content
		turns = turns[:len(turns)-1]
	}

	cs := model.StartChat()
	for _, t := range turns {
		role := "user"
		if t.Role == RoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &vertexgenai.Content{
			Role:  role,
			Parts: []vertexgenai.Part{vertexgenai.Text(t.Content)},
		})
	}

	it := cs.SendMessageStream(ctx, vertexgenai.Text(last))

	full := strings.Builder{}
	for {
		resp, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return "", err
		}

		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if t, ok := part.(vertexgenai.Text); ok && string(t) != "" {
					full.WriteString(string(t))
				}
			}
		}
	}

	return full.String(), nil
}
