package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONResponse_StripsFence(t *testing.T) {
	raw := "```json\n{\"disease\":\"Leaf Blast\",\"confidence\":82}\n```"

	result, err := ParseJSONResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "Leaf Blast", result["disease"])
	assert.Equal(t, float64(82), result["confidence"])
}

func TestParseJSONResponse_Invalid(t *testing.T) {
	_, err := ParseJSONResponse("not json")
	assert.Error(t, err)
}

func TestDetectImageMIMEType(t *testing.T) {
	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}
	webp := []byte("RIFF\x00\x00\x00\x00WEBP")

	assert.Equal(t, "image/png", DetectImageMIMEType(png))
	assert.Equal(t, "image/jpeg", DetectImageMIMEType(jpeg))
	assert.Equal(t, "image/webp", DetectImageMIMEType(webp))
	assert.Equal(t, "image/jpeg", DetectImageMIMEType([]byte{1, 2}))
	assert.Equal(t, "webp", ImageExtension("image/webp"))
	assert.Equal(t, "jpg", ImageExtension("image/bmp"))
}

func TestTryAllClients_FailsOverToNextClient(t *testing.T) {
	selector := NewGeminiClientSelector(make([]GeminiClient, 3))

	var tried []int
	err := selector.TryAllClients(context.Background(), func(_ *GeminiClient, idx int) error {
		tried = append(tried, idx)
		if idx < 2 {
			return errors.New("quota exceeded")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, tried)
}

func TestTryAllClients_AllFail(t *testing.T) {
	selector := NewGeminiClientSelector(make([]GeminiClient, 2))
	boom := errors.New("boom")

	err := selector.TryAllClients(context.Background(), func(*GeminiClient, int) error { return boom })
	assert.ErrorIs(t, err, boom)

	empty := NewGeminiClientSelector(nil)
	assert.ErrorIs(t, empty.TryAllClients(context.Background(), func(*GeminiClient, int) error { return nil }), ErrNoClients)
}

func TestTryAllClients_StopsWhenContextDone(t *testing.T) {
	selector := NewGeminiClientSelector(make([]GeminiClient, 3))
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := selector.TryAllClients(ctx, func(*GeminiClient, int) error {
		calls++
		cancel()
		return errors.New("quota exceeded")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

type fakeModel struct {
	reply string
	err   error
	calls int
}

func (f *fakeModel) GenerateContent(_ context.Context, _ ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(f.reply)}},
		}},
	}, nil
}

var leafPhoto = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0, 1, 2}

func TestSendAIWithImage_FlashAnswers(t *testing.T) {
	flash := &fakeModel{reply: `{"disease":"Leaf Blast"}`}
	pro := &fakeModel{reply: `{"disease":"Rust"}`}
	client := &GeminiClient{FlashModel: flash, ProModel: pro}

	result, err := client.SendAIWithImage(context.Background(), "diagnose", leafPhoto)
	require.NoError(t, err)
	assert.Equal(t, "Leaf Blast", result["disease"])
	assert.Equal(t, 0, pro.calls)
}

func TestSendAIWithImage_FallsBackToPro(t *testing.T) {
	flash := &fakeModel{reply: "I think it's rust"}
	pro := &fakeModel{reply: "```json\n{\"disease\":\"Rust\"}\n```"}
	client := &GeminiClient{FlashModel: flash, ProModel: pro}

	result, err := client.SendAIWithImage(context.Background(), "diagnose", leafPhoto)
	require.NoError(t, err)
	assert.Equal(t, "Rust", result["disease"])
	assert.Equal(t, 1, flash.calls)
	assert.Equal(t, 1, pro.calls)

	quota := errors.New("quota exceeded")
	client = &GeminiClient{FlashModel: &fakeModel{err: quota}, ProModel: &fakeModel{err: errors.New("unavailable")}}
	_, err = client.SendAIWithImage(context.Background(), "diagnose", leafPhoto)
	assert.ErrorIs(t, err, quota)
}
