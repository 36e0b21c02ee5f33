package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/lectiolabs/lectio-core/internal/config"
)

// geminiSynth calls the generative speech endpoint over HTTP. Each call
// carries its own hard timeout; failures are classified and retried
// according to the taxonomy in errors.go.
type geminiSynth struct {
	cfg    config.SpeechConfig
	client *http.Client
	logger *slog.Logger
}

func NewGeminiSynth(cfg config.SpeechConfig, logger *slog.Logger) Synthesizer {
	return &geminiSynth{
		cfg:    cfg,
		client: &http.Client{},
		logger: logger.With(slog.String("component", "speech-gemini")),
	}
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiGenConfig struct {
	ResponseModalities []string            `json:"responseModalities"`
	SpeechConfig       *geminiSpeechConfig `json:"speechConfig,omitempty"`
}

type geminiSpeechConfig struct {
	VoiceConfig geminiVoiceConfig `json:"voiceConfig"`
}

type geminiVoiceConfig struct {
	PrebuiltVoiceConfig geminiPrebuiltVoice `json:"prebuiltVoiceConfig"`
}

type geminiPrebuiltVoice struct {
	VoiceName string `json:"voiceName"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

func (g *geminiSynth) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if g.cfg.APIKey == "" {
		return nil, ErrMissingCredential
	}

	payload := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: buildPrompt(req)}}}},
		GenerationConfig: geminiGenConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &geminiSpeechConfig{
				VoiceConfig: geminiVoiceConfig{
					PrebuiltVoiceConfig: geminiPrebuiltVoice{VoiceName: req.Voice.ProviderVoice},
				},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	operation := func() ([]byte, error) {
		pcm, err := g.call(ctx, body)
		if err == nil {
			return pcm, nil
		}
		serr := AsError(err)
		switch serr.Kind {
		case KindAuth:
			return nil, backoff.Permanent(serr)
		case KindQuota:
			g.logger.Warn("speech call hit quota, cooling down",
				slog.Int("cooldown_ms", g.cfg.QuotaCooldown))
			serr.Err = backoff.RetryAfter(g.cfg.QuotaCooldown / 1000)
			return nil, serr
		default:
			g.logger.Warn("speech call failed, retrying", slog.String("error", serr.Message))
			return nil, serr
		}
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = time.Duration(g.cfg.RetryBaseMS) * time.Millisecond
	expo.Multiplier = 2
	expo.RandomizationFactor = 0

	maxTries := uint(g.cfg.MaxRetries)
	if maxTries == 0 {
		maxTries = 1
	}
	pcm, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(maxTries),
	)
	if err != nil {
		return nil, err
	}
	return pcm, nil
}

func (g *geminiSynth) call(parent context.Context, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(parent, time.Duration(g.cfg.TimeoutMS)*time.Millisecond)
	defer cancel()

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.cfg.Endpoint, g.cfg.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.cfg.APIKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &Error{Kind: KindTransient, Message: fmt.Sprintf("request timed out after %dms", g.cfg.TimeoutMS), Err: err}
		}
		return nil, &Error{Kind: KindTransient, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Message: "read response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		var errResp geminiErrorResponse
		message := resp.Status
		if jsonErr := json.Unmarshal(data, &errResp); jsonErr == nil && errResp.Error.Message != "" {
			message = fmt.Sprintf("%s (%s)", errResp.Error.Message, errResp.Error.Status)
		}
		return nil, Classify(resp.StatusCode, message, nil)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &Error{Kind: KindTransient, Message: "malformed response", Err: err}
	}
	if len(parsed.Candidates) == 0 ||
		len(parsed.Candidates[0].Content.Parts) == 0 ||
		parsed.Candidates[0].Content.Parts[0].InlineData == nil {
		return nil, &Error{Kind: KindTransient, Message: "no audio received from model"}
	}

	pcm, err := base64.StdEncoding.DecodeString(parsed.Candidates[0].Content.Parts[0].InlineData.Data)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Message: "decode audio payload", Err: err}
	}
	return pcm, nil
}
