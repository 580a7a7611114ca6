package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/satriahrh/schedula/adapters/audio"
	"github.com/satriahrh/schedula/adapters/backend"
	"github.com/satriahrh/schedula/adapters/llm"
	"github.com/satriahrh/schedula/adapters/memory"
	"github.com/satriahrh/schedula/adapters/mongo"
	"github.com/satriahrh/schedula/adapters/stt"
	"github.com/satriahrh/schedula/adapters/tts"
	"github.com/satriahrh/schedula/domain"
	"github.com/satriahrh/schedula/domain/repositories"
	"github.com/satriahrh/schedula/internal/auth"
	"github.com/satriahrh/schedula/internal/config"
	"github.com/satriahrh/schedula/internal/logging"
	"github.com/satriahrh/schedula/usecase"
)

// mockPhrases are spoken by the scripted recognizer in mock audio mode
var mockPhrases = []string{
	"What do I have on my calendar today",
	"Remind me to call the dentist tomorrow morning",
	"Am I free on Friday afternoon",
}

// app holds the process-wide collaborators of a command
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *auth.FileCredentialStore
	backend *backend.Client
	closers []func(context.Context) error
}

// newApp loads config and builds the logger, credential store and backend client.
// console receives log output when non-nil.
func newApp(console zapcore.WriteSyncer) (*app, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, err
	}
	if audioFlag != "" {
		cfg.Audio.Mode = audioFlag
	}
	if chatFlag != "" {
		cfg.Chat.Backend = chatFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if console == nil && verboseFlag {
		console = zapcore.Lock(os.Stderr)
	}
	logger, err := logging.New(cfg.Log, console)
	if err != nil {
		return nil, err
	}

	client, err := backend.NewClient(backend.Config{BaseURL: cfg.API.BaseURL, Timeout: cfg.API.Timeout}, logger)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   auth.NewFileCredentialStore(cfg.CredentialsFile, logger),
		backend: client,
	}, nil
}

func (a *app) authService() *usecase.AuthService {
	return usecase.NewAuthService(a.backend, a.store, a.logger)
}

func (a *app) scheduleService() *usecase.ScheduleService {
	return usecase.NewScheduleService(a.backend, a.store, a.logger)
}

// newSession wires a conversation session for the configured chat backend and audio mode
func (a *app) newSession(ctx context.Context) (*usecase.ConversationSession, error) {
	chat, err := a.chatBackend(ctx)
	if err != nil {
		return nil, err
	}

	deps := usecase.SessionDeps{
		Chat:        chat,
		Credentials: a.store,
		Notifier: repositories.NotifierFunc(func(n domain.Notice) {
			a.logger.Info("Notice", zap.String("kind", string(n.Kind)), zap.String("message", n.Message))
		}),
		Archive: a.archive(ctx),
	}

	switch a.cfg.Audio.Mode {
	case config.AudioModeDevice:
		mic := audio.NewMicrophone(a.cfg.Audio.InputPath, a.logger)
		deps.Microphone = mic
		deps.Recognizer = stt.NewGoogleRecognizer(mic, a.logger)
		deps.Synthesizer, err = a.deviceSynthesizer()
		if err != nil {
			return nil, err
		}
	case config.AudioModeMock:
		deps.Recognizer = stt.NewScriptedRecognizer(mockPhrases, 0, a.logger)
		deps.Synthesizer = tts.NewMockSynthesizer(0, nil, a.logger)
	}

	return usecase.NewConversationSession(usecase.SessionConfig{
		Greeting:      a.cfg.Session.Greeting,
		FallbackReply: a.cfg.Session.FallbackReply,
		FallbackDelay: a.cfg.Session.FallbackDelay,
		Audio: repositories.AudioConfig{
			SampleRate: a.cfg.Audio.SampleRate,
			Encoding:   a.cfg.Audio.Encoding,
			Language:   a.cfg.Audio.Language,
		},
		VoiceLanguage: a.cfg.Session.VoiceLanguage,
		Rate:          a.cfg.Session.Rate,
		Pitch:         a.cfg.Session.Pitch,
		Volume:        a.cfg.Session.Volume,
	}, deps, a.logger)
}

func (a *app) chatBackend(ctx context.Context) (repositories.ChatBackend, error) {
	switch a.cfg.Chat.Backend {
	case config.ChatBackendGemini:
		return llm.NewGeminiBackend(ctx, llm.GeminiConfig{
			APIKey: a.cfg.Chat.GeminiAPIKey,
			Model:  a.cfg.Chat.GeminiModel,
		}, a.logger)
	case config.ChatBackendMock:
		return llm.NewMockChatBackend(), nil
	}
	return a.backend, nil
}

// deviceSynthesizer returns nil when no ElevenLabs key is configured, which
// leaves speech synthesis unsupported
func (a *app) deviceSynthesizer() (repositories.Synthesizer, error) {
	if a.cfg.ElevenLabs.APIKey == "" {
		a.logger.Warn("ELEVEN_LABS_API_KEY not set, speech output disabled")
		return nil, nil
	}

	speaker, err := audio.OpenSpeaker(a.cfg.Audio.OutputPath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return speaker.Close() })

	return tts.NewElevenLabsSynthesizer(tts.ElevenLabsConfig{
		APIKey:       a.cfg.ElevenLabs.APIKey,
		APIBaseURL:   a.cfg.ElevenLabs.APIBaseURL,
		VoiceID:      a.cfg.ElevenLabs.VoiceID,
		ModelID:      a.cfg.ElevenLabs.ModelID,
		OutputFormat: a.cfg.ElevenLabs.OutputFormat,
		Stability:    a.cfg.ElevenLabs.Stability,
		Clarity:      a.cfg.ElevenLabs.Clarity,
	}, speaker, a.logger)
}

// archive connects to MongoDB when configured and falls back to memory
func (a *app) archive(ctx context.Context) repositories.MessageArchive {
	if a.cfg.Archive.MongoURI == "" {
		return memory.NewArchiveRepository()
	}

	client, err := mongo.NewClient(ctx, a.cfg.Archive.MongoURI, a.cfg.Archive.Database, a.logger)
	if err != nil {
		a.logger.Error("MongoDB unavailable, archiving in memory", zap.Error(err))
		return memory.NewArchiveRepository()
	}
	a.closers = append(a.closers, client.Close)
	return mongo.NewArchiveRepository(client.Database, a.cfg.Archive.Collection, a.logger)
}

// close releases resources in reverse order of acquisition
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("Failed to release resources", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// printf writes to w ignoring errors, for terminal output
func printf(w io.Writer, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(w, format, args...)
}
