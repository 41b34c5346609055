package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAITranscriber sends audio to the OpenAI transcription API (whisper-1).
// Backend failures of any kind surface as one wrapped error; retry policy, if
// any, belongs to the caller.
type OpenAITranscriber struct {
	client openai.Client
}

func NewOpenAITranscriber(apiKey string) *OpenAITranscriber {
	return &OpenAITranscriber{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Transcribe converts audio bytes to text. The result may be empty if the
// backend detects silence.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("transcription failed: empty audio payload")
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(audio), "audio.ogg", "audio/ogg"),
		Model: openai.AudioModelWhisper1,
	})
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}
	return resp.Text, nil
}
