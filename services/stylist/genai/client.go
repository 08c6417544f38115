// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package genai implements the image generation backend over an
// OpenAI-compatible multimodal endpoint.
//
// Both operations are single-attempt: no retries, no backoff. Timeouts
// belong to the caller's context and the backend's own policy.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/AleutianAI/AleutianStyle/services/stylist/engine"
)

const (
	// defaultModel is an image-output multimodal model reachable through
	// OpenAI-compatible gateways.
	defaultModel = "gemini-2.5-flash-image"

	tryOnPrompt = "Edit the first image so the person is wearing the " +
		"garment shown in the second image, layered naturally over their " +
		"current clothing. Keep the person, their face, the background and " +
		"the lighting unchanged. Return only the edited image."

	reposePromptFmt = "Re-render this full-body photo of the person with " +
		"the camera and stance changed to: %s. Keep the person, their " +
		"outfit, the background style and the lighting unchanged. Return " +
		"only the re-rendered image."
)

// poseInstructions maps the fixed pose enumeration to the instruction
// text sent to the model.
var poseInstructions = map[engine.Pose]string{
	engine.PoseFront:        "facing the camera straight on",
	engine.PoseSideProfile:  "standing in full side profile",
	engine.PoseBack:         "seen from behind",
	engine.PoseThreeQuarter: "turned three-quarters toward the camera",
	engine.PoseWalking:      "captured mid-stride walking toward the camera",
	engine.PoseSeated:       "seated on a plain stool",
}

// dataURLPattern matches a base64 image data URL in model output.
var dataURLPattern = regexp.MustCompile(`data:image/[a-zA-Z0-9.+-]+;base64,[A-Za-z0-9+/=]+`)

// Client calls an OpenAI-compatible multimodal endpoint. It implements
// engine.Generator.
type Client struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewClient builds a client from the environment.
//
// Description:
//
//	Reads OPENAI_API_KEY from the environment, falling back to the
//	container secret at /run/secrets/openai_api_key. The model defaults
//	to an image-output model and is overridable via STYLE_IMAGE_MODEL;
//	STYLE_IMAGE_BASE_URL points the client at a compatible gateway.
//
// Outputs:
//
//	*Client - The ready client.
//	error - Non-nil when no API key can be found.
func NewClient() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the OpenAI API Key from Podman Secrets")
		} else {
			slog.Error("OPENAI_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	}
	model := os.Getenv("STYLE_IMAGE_MODEL")
	if model == "" {
		model = defaultModel
		slog.Warn("STYLE_IMAGE_MODEL not set, defaulting", "model", defaultModel)
	}

	cfg := openai.DefaultConfig(apiKey)
	if base := os.Getenv("STYLE_IMAGE_BASE_URL"); base != "" {
		cfg.BaseURL = base
	}

	slog.Info("Initializing image generation client", "model", model)
	return &Client{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: slog.Default(),
	}, nil
}

// TryOn implements engine.Generator.
func (c *Client) TryOn(ctx context.Context, base, garment engine.ImageRef) (engine.ImageRef, error) {
	if base.IsZero() || garment.IsZero() {
		return engine.ImageRef{}, fmt.Errorf("try-on requires a base and a garment image")
	}
	return c.generate(ctx, tryOnPrompt, base, garment)
}

// Repose implements engine.Generator.
func (c *Client) Repose(ctx context.Context, base engine.ImageRef, pose engine.Pose) (engine.ImageRef, error) {
	instruction, ok := poseInstructions[pose]
	if !ok {
		return engine.ImageRef{}, fmt.Errorf("no instruction for pose %q", pose)
	}
	return c.generate(ctx, fmt.Sprintf(reposePromptFmt, instruction), base)
}

// generate issues one multimodal chat completion carrying the prompt and
// images, and extracts the returned image.
func (c *Client) generate(ctx context.Context, prompt string, images ...engine.ImageRef) (engine.ImageRef, error) {
	parts := make([]openai.ChatMessagePart, 0, len(images)+1)
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: prompt,
	})
	for _, img := range images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    img.Locator(),
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		c.logger.Error("image generation call failed", "model", c.model, "error", err)
		return engine.ImageRef{}, fmt.Errorf("image generation call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return engine.ImageRef{}, fmt.Errorf("image model returned no choices")
	}

	out, err := extractImage(resp.Choices[0].Message.Content)
	if err != nil {
		return engine.ImageRef{}, err
	}
	c.logger.Debug("image generated", "model", c.model, "bytes", len(out.Data))
	return out, nil
}

// extractImage pulls the first base64 image data URL out of model output.
//
// Image-output models on OpenAI-compatible gateways return the image
// inline in the message content, usually wrapped in markdown.
func extractImage(content string) (engine.ImageRef, error) {
	match := dataURLPattern.FindString(content)
	if match == "" {
		return engine.ImageRef{}, fmt.Errorf("image model returned no image content")
	}
	ref, err := engine.ParseDataURL(match)
	if err != nil {
		return engine.ImageRef{}, fmt.Errorf("image model returned malformed image: %w", err)
	}
	return ref, nil
}
