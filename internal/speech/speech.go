// Package speech wraps the remote speech endpoints: audio in, text out
// and text in, audio out. No retries; failures surface to the caller.
package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var (
	ErrTranscription = errors.New("transcription failed")
	ErrSynthesis     = errors.New("speech synthesis failed")
)

type Gateway struct {
	client         *openai.Client
	transcribeName string
	speechModel    openai.SpeechModel
	voice          openai.SpeechVoice
	logger         *zap.Logger
}

func NewGateway(apiKey, transcribeModel, speechModel, voice string, logger *zap.Logger) *Gateway {
	if transcribeModel == "" {
		transcribeModel = openai.Whisper1
	}
	if speechModel == "" {
		speechModel = string(openai.TTSModel1)
	}
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	return &Gateway{
		client:         openai.NewClient(apiKey),
		transcribeName: transcribeModel,
		speechModel:    openai.SpeechModel(speechModel),
		voice:          openai.SpeechVoice(voice),
		logger:         logger,
	}
}

// Transcribe uploads captured audio and returns the recognized text.
// filename carries the container extension (e.g. "voice.ogg") the endpoint
// uses to pick a decoder.
func (g *Gateway) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	resp, err := g.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    g.transcribeName,
		FilePath: filename,
		Reader:   bytes.NewReader(audio),
	})
	if err != nil {
		g.logger.Error("transcription request failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	return resp.Text, nil
}

// Synthesize returns spoken audio (ogg/opus) for the given text.
func (g *Gateway) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := g.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          g.speechModel,
		Input:          text,
		Voice:          g.voice,
		ResponseFormat: openai.SpeechResponseFormatOpus,
	})
	if err != nil {
		g.logger.Error("synthesis request failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: reading audio: %v", ErrSynthesis, err)
	}
	return audio, nil
}
