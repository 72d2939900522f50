package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/harun/casegen/internal/config"
	"github.com/harun/casegen/internal/logger"
	"github.com/harun/casegen/pkg/generator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBotAPI stands in for the Telegram client
type fakeBotAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	updates  chan tgbotapi.Update
}

func newFakeBotAPI() *fakeBotAPI {
	return &fakeBotAPI{updates: make(chan tgbotapi.Update, 8)}
}

func (f *fakeBotAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeBotAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeBotAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeBotAPI) StopReceivingUpdates() {}

func (f *fakeBotAPI) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var texts []string
	for _, c := range f.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			texts = append(texts, msg.Text)
		}
	}
	return texts
}

type stubProvider struct{ text string }

func (p stubProvider) Name() string { return "stub" }

func (p stubProvider) Generate(context.Context, string) (string, error) {
	return p.text, nil
}

func stubDependencies(t *testing.T, api *fakeBotAPI) {
	t.Helper()

	prevAPI, prevProvider := newBotAPI, newProvider
	t.Cleanup(func() {
		newBotAPI, newProvider = prevAPI, prevProvider
	})

	newBotAPI = func(string) (BotAPI, error) { return api, nil }
	newProvider = func(context.Context, generator.ProviderConfig) (generator.Provider, error) {
		return stubProvider{text: "1. Open the login page\n2. Enter valid credentials"}, nil
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	tmpDir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.DataDir = tmpDir
	cfg.Telegram.BotToken = "123:test"
	cfg.AI.APIKey = "AIzaTest"
	cfg.Storage.SnapshotPath = filepath.Join(tmpDir, "sessions.json")
	cfg.Export.Dir = filepath.Join(tmpDir, "exports")
	return cfg
}

func TestNew(t *testing.T) {
	api := newFakeBotAPI()
	stubDependencies(t, api)

	d, err := New(testConfig(t), logger.Nop())
	require.NoError(t, err)

	assert.NotNil(t, d.GetStore())
	assert.NotNil(t, d.GetHandler())
	assert.NotNil(t, d.GetTelegramBot())
	assert.NotNil(t, d.GetMetrics())
	assert.Nil(t, d.metricsSrv)
	assert.Nil(t, d.watcher)
	assert.DirExists(t, d.GetConfig().Export.Dir)
	assert.False(t, d.Status().Running)
}

func TestNew_InvalidConfig(t *testing.T) {
	stubDependencies(t, newFakeBotAPI())

	cfg := testConfig(t)
	cfg.Telegram.BotToken = ""

	_, err := New(cfg, logger.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram bot token is required")
}

func TestNew_MalformedSnapshot(t *testing.T) {
	stubDependencies(t, newFakeBotAPI())

	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.Storage.SnapshotPath, []byte("{broken"), 0600))

	_, err := New(cfg, logger.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed session snapshot")
}

func TestNew_ProviderError(t *testing.T) {
	stubDependencies(t, newFakeBotAPI())
	newProvider = func(context.Context, generator.ProviderConfig) (generator.Provider, error) {
		return nil, errors.New("bad key")
	}

	_, err := New(testConfig(t), logger.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
}

func TestNew_RedisBackend(t *testing.T) {
	stubDependencies(t, newFakeBotAPI())
	mr := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.Storage.Backend = "redis"
	cfg.Storage.RedisAddr = mr.Addr()

	d, err := New(cfg, logger.Nop())
	require.NoError(t, err)

	n, err := d.GetStore().Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNew_PromptWatcher(t *testing.T) {
	stubDependencies(t, newFakeBotAPI())

	cfg := testConfig(t)
	cfg.Prompts.Dir = t.TempDir()
	cfg.Prompts.Watch = true

	d, err := New(cfg, logger.Nop())
	require.NoError(t, err)
	assert.NotNil(t, d.watcher)
}

func TestDaemon_StartStop(t *testing.T) {
	api := newFakeBotAPI()
	stubDependencies(t, api)

	cfg := testConfig(t)
	d, err := New(cfg, logger.Nop())
	require.NoError(t, err)

	require.NoError(t, d.Start(context.Background()))
	assert.True(t, d.Status().Running)
	assert.True(t, d.GetTelegramBot().IsRunning())
	assert.FileExists(t, filepath.Join(cfg.DataDir, "casegen.pid"))
	assert.Error(t, d.Start(context.Background()), "second start should fail")

	// commands menu is published on start
	api.mu.Lock()
	_, ok := api.requests[0].(tgbotapi.SetMyCommandsConfig)
	api.mu.Unlock()
	assert.True(t, ok)

	require.NoError(t, d.Stop())
	assert.False(t, d.Status().Running)
	assert.NoFileExists(t, filepath.Join(cfg.DataDir, "casegen.pid"))
	assert.Error(t, d.Stop(), "second stop should fail")
}

func TestDaemon_HandlesFeatureDescription(t *testing.T) {
	api := newFakeBotAPI()
	stubDependencies(t, api)

	cfg := testConfig(t)
	d, err := New(cfg, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	api.updates <- tgbotapi.Update{
		UpdateID: 1,
		Message: &tgbotapi.Message{
			MessageID: 10,
			Chat:      &tgbotapi.Chat{ID: 77},
			Text:      "Login with valid credentials",
		},
	}

	require.Eventually(t, func() bool { return len(api.sentTexts()) == 2 }, 2*time.Second, 10*time.Millisecond)
	texts := api.sentTexts()
	assert.Contains(t, texts[0], "Analyzing")
	assert.Contains(t, texts[1], "1. Open the login page")
	assert.Equal(t, 1, d.Status().Sessions)

	data, err := os.ReadFile(cfg.Storage.SnapshotPath)
	require.NoError(t, err)
	var snapshot map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &snapshot))
	require.Len(t, snapshot, 1)
	for _, s := range snapshot {
		assert.Equal(t, "1. Open the login page\n2. Enter valid credentials", s["manual"])
	}
}

func TestDaemon_RunStopsOnCancel(t *testing.T) {
	api := newFakeBotAPI()
	stubDependencies(t, api)

	d, err := New(testConfig(t), logger.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return d.Status().Running }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, d.Status().Running)
}
