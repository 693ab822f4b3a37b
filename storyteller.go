package main

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const storytellerSystemPrompt = `You are a dramatic storyteller for a medieval werewolf game. When players are killed, you tell a short atmospheric story about their fate. Keep it to 2-3 sentences. Be gothic and dramatic, fitting for a village plagued by werewolves.`

// Storyteller generates a dramatic story after deaths in the game.
// onChunk is called with each text chunk as it streams in.
type Storyteller interface {
	Tell(ctx context.Context, history []string, onChunk func(string)) (string, error)
}

// globalStoryteller is nil when no provider is configured (feature disabled).
var globalStoryteller Storyteller

type llmStoryteller struct {
	llm          llms.Model
	systemPrompt string
	callOpts     []llms.CallOption
}

func (s *llmStoryteller) Tell(ctx context.Context, history []string, onChunk func(string)) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, s.systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman,
			"Game history so far:\n"+strings.Join(history, "\n")+
				"\n\nTell a short dramatic story (2-3 sentences) about what just happened to the victim."),
	}

	var fullText strings.Builder
	opts := append(s.callOpts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
		text := string(chunk)
		fullText.WriteString(text)
		if onChunk != nil {
			onChunk(text)
		}
		return nil
	}))

	_, err := s.llm.GenerateContent(ctx, messages, opts...)
	return strings.TrimSpace(fullText.String()), err
}

// buildCallOpts builds LLM call options from the config.
func buildCallOpts(cfg AppConfig) []llms.CallOption {
	var opts []llms.CallOption

	if cfg.StorytellerTemperature != "" {
		if f, err := strconv.ParseFloat(cfg.StorytellerTemperature, 64); err == nil {
			opts = append(opts, llms.WithTemperature(f))
			log.Printf("Storyteller: temperature=%.2f", f)
		} else {
			log.Printf("Storyteller: invalid temperature %q: %v", cfg.StorytellerTemperature, err)
		}
	}

	if cfg.StorytellerThinking != "" {
		mode := llms.ThinkingMode(cfg.StorytellerThinking)
		switch mode {
		case llms.ThinkingModeNone, llms.ThinkingModeLow, llms.ThinkingModeMedium, llms.ThinkingModeHigh, llms.ThinkingModeAuto:
			opts = append(opts, llms.WithThinkingMode(mode))
			log.Printf("Storyteller: thinking=%s", mode)
		default:
			log.Printf("Storyteller: invalid thinking %q (valid: none, low, medium, high, auto)", cfg.StorytellerThinking)
		}
	}

	return opts
}

// initStoryteller sets up the global storyteller from config.
func initStoryteller(cfg AppConfig) {
	provider := cfg.StorytellerProvider
	model := cfg.StorytellerModel
	callOpts := buildCallOpts(cfg)

	switch provider {
	case "ollama":
		llm, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(cfg.StorytellerOllamaURL))
		if err != nil {
			log.Printf("Storyteller: failed to init Ollama (%s at %s): %v", model, cfg.StorytellerOllamaURL, err)
			return
		}
		globalStoryteller = &llmStoryteller{llm: llm, systemPrompt: storytellerSystemPrompt, callOpts: callOpts}
		log.Printf("Storyteller: Ollama model=%s url=%s", model, cfg.StorytellerOllamaURL)
	case "openai":
		llm, err := openai.New(openai.WithModel(model))
		if err != nil {
			log.Printf("Storyteller: failed to init OpenAI (%s): %v", model, err)
			return
		}
		globalStoryteller = &llmStoryteller{llm: llm, systemPrompt: storytellerSystemPrompt, callOpts: callOpts}
		log.Printf("Storyteller: OpenAI model=%s", model)
	case "claude":
		llm, err := anthropic.New(anthropic.WithModel(model))
		if err != nil {
			log.Printf("Storyteller: failed to init Claude (%s): %v", model, err)
			return
		}
		globalStoryteller = &llmStoryteller{llm: llm, systemPrompt: storytellerSystemPrompt, callOpts: callOpts}
		log.Printf("Storyteller: Claude model=%s", model)
	case "gemini":
		llm, err := googleai.New(context.Background(), googleai.WithDefaultModel(model))
		if err != nil {
			log.Printf("Storyteller: failed to init Gemini (%s): %v", model, err)
			return
		}
		globalStoryteller = &llmStoryteller{llm: llm, systemPrompt: storytellerSystemPrompt, callOpts: callOpts}
		log.Printf("Storyteller: Gemini model=%s", model)
	case "groq":
		llm, err := openai.New(
			openai.WithModel(model),
			openai.WithBaseURL("https://api.groq.com/openai/v1"),
			openai.WithToken(cfg.GroqAPIKey),
		)
		if err != nil {
			log.Printf("Storyteller: failed to init Groq (%s): %v", model, err)
			return
		}
		globalStoryteller = &llmStoryteller{llm: llm, systemPrompt: storytellerSystemPrompt, callOpts: callOpts}
		log.Printf("Storyteller: Groq model=%s", model)
	case "openai-compatible":
		if cfg.StorytellerURL == "" {
			log.Printf("Storyteller: storyteller_url is required for openai-compatible provider")
			return
		}
		opts := []openai.Option{
			openai.WithModel(model),
			openai.WithBaseURL(cfg.StorytellerURL),
		}
		if cfg.StorytellerAPIKey != "" {
			opts = append(opts, openai.WithToken(cfg.StorytellerAPIKey))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			log.Printf("Storyteller: failed to init openai-compatible (%s at %s): %v", model, cfg.StorytellerURL, err)
			return
		}
		globalStoryteller = &llmStoryteller{llm: llm, systemPrompt: storytellerSystemPrompt, callOpts: callOpts}
		log.Printf("Storyteller: openai-compatible model=%s url=%s", model, cfg.StorytellerURL)
	default:
		log.Printf("Storyteller: disabled (set storyteller_provider to enable)")
	}
}

// maybeGenerateStory asynchronously streams a story about the latest events.
// Returns immediately; partial text reaches the clients as story_chunk events
// every 300ms and the finished story joins the game history.
func maybeGenerateStory(g *Game) {
	if globalStoryteller == nil {
		return
	}

	history := g.History()
	gameID := g.ID

	go func() {
		// Buffer for streamed tokens, updated by the streaming callback
		var mu sync.Mutex
		var buf strings.Builder

		// Flush goroutine: pushes partial text to clients every 300ms
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(300 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					text := buf.String()
					mu.Unlock()
					if text != "" {
						broadcastStoryChunk(strings.TrimSpace(text), false)
					}
				case <-done:
					return
				}
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		_, err := globalStoryteller.Tell(ctx, history, func(chunk string) {
			mu.Lock()
			buf.WriteString(chunk)
			mu.Unlock()
		})

		close(done)

		if err != nil {
			log.Printf("maybeGenerateStory: storyteller error: %v", err)
			return
		}

		mu.Lock()
		finalText := strings.TrimSpace(buf.String())
		mu.Unlock()

		if finalText == "" {
			return
		}

		g.AppendStory(finalText)
		log.Printf("Storyteller: completed story for game %s", gameID)
		broadcastStoryChunk(finalText, true)
	}()
}

// broadcastStoryChunk pushes the story text so far, flagging the final chunk.
func broadcastStoryChunk(text string, final bool) {
	payload := struct {
		Text  string `json:"text"`
		Final bool   `json:"final"`
	}{Text: text, Final: final}
	msg, err := json.Marshal(ServerMessage{Event: "story_chunk", Payload: payload})
	if err != nil {
		logError("broadcastStoryChunk: marshal", err)
		return
	}
	hub.broadcastMessage(msg)
}
