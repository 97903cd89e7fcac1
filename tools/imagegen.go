// Image generation tool - produces images via the OpenAI images API.
//
// A stopping tool: once it runs, the loop offers no tools on the next
// cycle and the model must answer.
//
// Information Hiding:
// - Images API request/response details
// - Generated file identifier assignment

package tools

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/mwielandt/tern/llm"
	"github.com/mwielandt/tern/model"
)

// ImageGenTool generates images from text prompts.
type ImageGenTool struct {
	id     int
	client *openai.Client
	model  string
}

// NewImageGenTool creates an image generation tool.
func NewImageGenTool(id int, apiKey string) *ImageGenTool {
	return &ImageGenTool{
		id:     id,
		client: openai.NewClient(apiKey),
		model:  openai.CreateImageModelDallE3,
	}
}

// WithModel overrides the image model.
func (t *ImageGenTool) WithModel(imageModel string) *ImageGenTool {
	if imageModel != "" {
		t.model = imageModel
	}
	return t
}

// Name returns the tool name.
func (t *ImageGenTool) Name() string { return NameImageGen }

// ID returns the persisted tool id.
func (t *ImageGenTool) ID() int { return t.id }

// Definition returns the function declaration for the model.
func (t *ImageGenTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name: NameImageGen,
		Description: "Generate an image from a text prompt. The image is displayed to the user " +
			"directly; do not link to it in your response.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"prompt": map[string]any{
					"type":        "string",
					"description": "A detailed description of the image to generate",
				},
			},
			"required": []string{"prompt"},
		},
	}
}

// Run generates the image.
func (t *ImageGenTool) Run(ctx context.Context, args map[string]any) (Response, error) {
	prompt, _ := args["prompt"].(string)
	if prompt == "" {
		return Response{}, fmt.Errorf("prompt argument is required")
	}

	resp, err := t.client.CreateImage(ctx, openai.ImageRequest{
		Model:          t.model,
		Prompt:         prompt,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return Response{}, fmt.Errorf("image generation failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return Response{}, fmt.Errorf("image generation returned no images")
	}

	images := make([]model.GeneratedImage, 0, len(resp.Data))
	for _, data := range resp.Data {
		images = append(images, model.GeneratedImage{
			FileID: uuid.New().String(),
			URL:    data.URL,
			Prompt: prompt,
		})
	}

	return Response{
		LLMFacingResponse: fmt.Sprintf("Generated %d image(s) for prompt %q. The images are already displayed to the user.", len(images), prompt),
		Rich: GeneratedImagesResponse{
			GeneratedImages: images,
		},
	}, nil
}

var _ Tool = (*ImageGenTool)(nil)
