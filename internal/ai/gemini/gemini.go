package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// contentGenerator is the part of *genai.GenerativeModel the client uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiClient asks the flash model first and falls back to the pro model
// when flash errors or answers with something that is not a JSON object.
type GeminiClient struct {
	Client     *genai.Client
	FlashModel contentGenerator
	ProModel   contentGenerator
}

func NewGenAIClient(ctx context.Context, apiKey, flashModelName, proModelName string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("genai client init failed: %w", err)
	}

	return &GeminiClient{
		Client:     client,
		FlashModel: client.GenerativeModel(flashModelName),
		ProModel:   client.GenerativeModel(proModelName),
	}, nil
}

// NewClientsFromKeys builds one client per API key. Keys that fail to
// initialize are logged and skipped.
func NewClientsFromKeys(ctx context.Context, apiKeys []string, flashModelName, proModelName string) []GeminiClient {
	clients := make([]GeminiClient, 0, len(apiKeys))
	for i, key := range apiKeys {
		client, err := NewGenAIClient(ctx, key, flashModelName, proModelName)
		if err != nil {
			slog.Warn("Skipping gemini api key", "index", i, "error", err)
			continue
		}
		clients = append(clients, *client)
	}
	return clients
}

func (g *GeminiClient) Close() error {
	if g.Client == nil {
		return nil
	}
	return g.Client.Close()
}

// SendAIWithImage sends a prompt plus one raw image and decodes the JSON
// object the model answers with.
func (g *GeminiClient) SendAIWithImage(ctx context.Context, prompt string, image []byte) (map[string]any, error) {
	if len(image) == 0 {
		return nil, errors.New("empty image data")
	}

	mimeType := DetectImageMIMEType(image)
	slog.Info("Sending AI request with image",
		"prompt_length", len(prompt),
		"image_bytes", len(image),
		"mime_type", mimeType)

	result, err := generateJSON(ctx, g.FlashModel, prompt, mimeType, image)
	if err == nil || g.ProModel == nil || ctx.Err() != nil {
		return result, err
	}
	slog.Warn("Flash model failed, retrying with pro model", "error", err)
	result, proErr := generateJSON(ctx, g.ProModel, prompt, mimeType, image)
	if proErr != nil {
		return nil, fmt.Errorf("flash: %w; pro: %w", err, proErr)
	}
	return result, nil
}

func generateJSON(ctx context.Context, model contentGenerator, prompt, mimeType string, image []byte) (map[string]any, error) {
	if model == nil {
		return nil, errors.New("model not configured")
	}
	resp, err := model.GenerateContent(ctx,
		genai.Text(prompt),
		genai.Blob{
			MIMEType: mimeType,
			Data:     image,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with image: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("no content returned from AI")
	}

	textPart, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return nil, fmt.Errorf("response part is not text, received %T", resp.Candidates[0].Content.Parts[0])
	}
	return ParseJSONResponse(string(textPart))
}

// ParseJSONResponse strips an optional markdown fence and decodes the object.
func ParseJSONResponse(aiResponse string) (map[string]any, error) {
	aiResponse = strings.TrimSpace(aiResponse)
	if strings.HasPrefix(aiResponse, "```") {
		aiResponse = strings.TrimPrefix(aiResponse, "```json")
		aiResponse = strings.TrimPrefix(aiResponse, "```")
		aiResponse = strings.TrimSuffix(aiResponse, "```")
	}
	aiResponse = strings.TrimSpace(aiResponse)

	var resultMap map[string]any
	if err := json.Unmarshal([]byte(aiResponse), &resultMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal AI response to JSON: %w. \nRaw response was: %s", err, aiResponse)
	}
	return resultMap, nil
}

// SendAIWithImageAndRetry attempts the request with automatic failover across multiple clients
func SendAIWithImageAndRetry(ctx context.Context, prompt string, image []byte, selector *GeminiClientSelector) (map[string]any, error) {
	var result map[string]any

	err := selector.TryAllClients(ctx, func(client *GeminiClient, clientIdx int) error {
		resp, err := client.SendAIWithImage(ctx, prompt, image)
		if err != nil {
			return err
		}
		result = resp
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// DetectImageMIMEType detects the MIME type of an image based on magic bytes
func DetectImageMIMEType(data []byte) string {
	if len(data) < 8 {
		return "image/jpeg"
	}

	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// GIF: 47 49 46 38
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 {
		return "image/gif"
	}
	// WebP: RIFF....WEBP
	if data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 {
		if len(data) > 11 && data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
			return "image/webp"
		}
	}

	return "image/jpeg"
}

// ImageExtension maps a detected MIME type to an object-name extension.
func ImageExtension(mimeType string) string {
	switch mimeType {
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	default:
		return "jpg"
	}
}
