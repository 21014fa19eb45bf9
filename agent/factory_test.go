package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/wikiagent/config"
	"github.com/BaSui01/wikiagent/llm/observability"
	"github.com/BaSui01/wikiagent/testutil"
	"github.com/BaSui01/wikiagent/testutil/fixtures"
)

func TestNewFromConfig_WithoutAPIKey(t *testing.T) {
	t.Parallel()

	site := fixtures.NewWikiSite(t)
	cfg := config.DefaultConfig()
	cfg.Site.BaseURL = site.URL()
	cfg.LLM.APIKey = ""

	a, err := NewFromConfig(cfg, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, a.assembler.synth)

	env := a.ProcessQuery(testutil.TestContext(t), "Gunung Agung lokasinya ada dimana")
	assert.True(t, env.Found)
	assert.Equal(t, []string{site.URL() + fixtures.AgungPath}, env.Sources)
}

func TestNewFromConfig_WithAPIKey(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.LLM.APIKey = "test-key"

	a, err := NewFromConfig(cfg, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, a.assembler.synth)

	synth, ok := a.assembler.synth.(*LLMSynthesizer)
	require.True(t, ok)
	assert.IsType(t, &observability.InstrumentedProvider{}, synth.provider)
	assert.Equal(t, "gemini", synth.provider.Name())
	assert.Equal(t, "gemini-2.0-flash", synth.config.Model)
}

func TestNewFromConfig_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewFromConfig(nil, nil, nil)
	assert.ErrorIs(t, err, ErrConfigRequired)

	cfg := config.DefaultConfig()
	cfg.LLM.APIKey = "k"
	cfg.LLM.Provider = "openai"
	_, err = NewFromConfig(cfg, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")

	cfg = config.DefaultConfig()
	cfg.Site.ProfilePath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = NewFromConfig(cfg, nil, nil)
	assert.Error(t, err)
}

func TestProfileFromConfig(t *testing.T) {
	t.Parallel()

	t.Run("builtin with overrides", func(t *testing.T) {
		t.Parallel()

		p, err := ProfileFromConfig(config.SiteConfig{
			BaseURL:        "http://localhost:3000/",
			SearchEndpoint: "/search?q=",
		})
		require.NoError(t, err)
		assert.Equal(t, "localhost:3000", p.Host())
		assert.Equal(t, "/search?q=", p.SearchEndpoint)
		assert.Equal(t, "ambisius", p.Name)
	})

	t.Run("profile file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "site.yaml")
		require.NoError(t, os.WriteFile(path, []byte("name: staging\nbase_url: https://staging.wiki.example\n"), 0o600))

		p, err := ProfileFromConfig(config.SiteConfig{ProfilePath: path})
		require.NoError(t, err)
		assert.Equal(t, "staging", p.Name)
		assert.Equal(t, "staging.wiki.example", p.Host())
	})

	t.Run("invalid override", func(t *testing.T) {
		t.Parallel()

		_, err := ProfileFromConfig(config.SiteConfig{BaseURL: "not a url"})
		assert.ErrorIs(t, err, ErrProfileInvalid)
	})
}

func TestProviderFromConfig_NoKey(t *testing.T) {
	t.Parallel()

	p, err := ProviderFromConfig(config.DefaultLLMConfig(), nil, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, p)
}
