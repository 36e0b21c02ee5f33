package optimize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/lectiolabs/lectio-core/internal/config"
	"github.com/lectiolabs/lectio-core/internal/speech"
)

const promptES = `Eres un experto redactor de guiones para locución en español de España.
Tu tarea es reescribir el siguiente texto para que suene 100% natural al ser leído por una IA (Text-to-Speech).
Reglas OBLIGATORIAS:
1. NO resumas. Mantén TODO el contenido.
2. Expande abreviaturas ("Sr." -> "Señor").
3. Cifras y fechas a texto si mejora la fluidez.
4. Puntuación para pausas naturales.
5. Español de España neutro.`

const promptEN = `You are an expert scriptwriter for English voiceovers.
Your task is to rewrite the following text so it sounds 100% natural when read by an AI (Text-to-Speech).
MANDATORY Rules:
1. DO NOT summarize. Keep ALL content.
2. Expand abbreviations ("Mr." -> "Mister", "St." -> "Street").
3. Convert numbers/dates to text if it improves flow.
4. Use punctuation for natural pauses.
5. Standard English (neutral).`

type geminiRewriter struct {
	cfg    config.OptimizerConfig
	apiKey string
	base   string
	client *http.Client
	logger *slog.Logger
}

// NewGeminiRewriter talks to the provider's text model. Endpoint and
// credential are shared with the speech client.
func NewGeminiRewriter(cfg config.OptimizerConfig, speechCfg config.SpeechConfig, logger *slog.Logger) Rewriter {
	return &geminiRewriter{
		cfg:    cfg,
		apiKey: speechCfg.APIKey,
		base:   strings.TrimRight(speechCfg.Endpoint, "/"),
		client: &http.Client{},
		logger: logger.With(slog.String("component", "optimize")),
	}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// Rewrite processes the text in paragraph-aligned chunks so long
// sections cannot time out a single request. A chunk that still fails
// after its retry keeps its original text.
func (g *geminiRewriter) Rewrite(ctx context.Context, text, language string) (string, error) {
	if g.apiKey == "" {
		return "", speech.ErrMissingCredential
	}
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	base := promptEN
	if language == "es" {
		base = promptES
	}

	chunks := splitParagraphChunks(text, g.cfg.ChunkChars)
	var out strings.Builder
	for i, chunk := range chunks {
		prompt := fmt.Sprintf("%s\n\nInput Text (Part %d of %d):\n%q\n\nOutput (Rewritten text only):", base, i+1, len(chunks), chunk)
		rewritten, err := g.rewriteChunk(ctx, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			g.logger.Warn("rewrite chunk failed, keeping original text",
				slog.Int("chunk", i+1),
				slog.Int("total", len(chunks)),
				slog.String("error", err.Error()))
			rewritten = chunk
		}
		if out.Len() > 0 {
			out.WriteString("\n\n")
		}
		out.WriteString(rewritten)
	}
	return out.String(), nil
}

func (g *geminiRewriter) rewriteChunk(ctx context.Context, prompt string) (string, error) {
	operation := func() (string, error) {
		text, err := g.call(ctx, prompt)
		if err == nil {
			return text, nil
		}
		if serr := speech.AsError(err); serr.Kind == speech.KindAuth {
			return "", backoff.Permanent(err)
		}
		return "", err
	}
	// a single retry keeps the rewriter cheap; the caller falls back to
	// the original text anyway
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(2*time.Second)),
		backoff.WithMaxTries(2))
}

func (g *geminiRewriter) call(ctx context.Context, prompt string) (string, error) {
	timeout := time.Duration(g.cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = time.Minute
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload := geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.base, g.cfg.Model)
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", speech.Classify(0, err.Error(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", speech.Classify(resp.StatusCode, err.Error(), err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", speech.Classify(resp.StatusCode, "malformed rewrite response", err)
	}
	if resp.StatusCode != http.StatusOK {
		message := resp.Status
		if parsed.Error != nil {
			message = parsed.Error.Status + ": " + parsed.Error.Message
		}
		return "", speech.Classify(resp.StatusCode, message, nil)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", speech.Classify(resp.StatusCode, "rewrite response has no text", nil)
	}

	var text strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	return strings.TrimSpace(text.String()), nil
}
