package config

import (
	"os"
	"path/filepath"
	"testing"

	internal "github.com/ZanzyTHEbar/volsearch/volsearch"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ConfigTestSuite tests the config package functionality
type ConfigTestSuite struct {
	suite.Suite
	tempDir string
	origDir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	var err error
	suite.origDir, err = os.Getwd()
	require.NoError(suite.T(), err)

	suite.tempDir = suite.T().TempDir()

	// Run from an empty directory so no stray config.yaml is picked up
	require.NoError(suite.T(), os.Chdir(suite.tempDir))
}

func (suite *ConfigTestSuite) TearDownTest() {
	if suite.origDir != "" {
		_ = os.Chdir(suite.origDir)
	}
}

func (suite *ConfigTestSuite) writeConfig(name, content string) string {
	path := filepath.Join(suite.tempDir, name)
	require.NoError(suite.T(), os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (suite *ConfigTestSuite) TestLoadConfigWithDefaults() {
	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), cfg)

	assert.Empty(suite.T(), cfg.Index.Volumes)
	assert.Equal(suite.T(), internal.DefaultRoots(), nilIfEmpty(cfg.Index.Roots))
	assert.False(suite.T(), cfg.Index.SkipElevation)
	assert.True(suite.T(), cfg.Index.AllowFallback)
	assert.Equal(suite.T(), 1<<20, cfg.Index.BufferSize)
	assert.Equal(suite.T(), 16<<20, cfg.Index.MaxBufferSize)
	assert.Equal(suite.T(), 8, cfg.Index.PipelineDepth)
	assert.Equal(suite.T(), 4096, cfg.Index.BatchSize)
	assert.Equal(suite.T(), internal.DefaultWorkers(), cfg.Index.Workers)
	assert.Equal(suite.T(), 4096, cfg.Index.MaxPathDepth)
	assert.Equal(suite.T(), 65536, cfg.Index.ResolverCache)

	assert.Equal(suite.T(), 500, cfg.Search.MaxResults)
	assert.True(suite.T(), cfg.Search.IncludeHidden)

	assert.Equal(suite.T(), "info", cfg.Log.Level)
	assert.Empty(suite.T(), cfg.Log.File)
	assert.Equal(suite.T(), 10, cfg.Log.MaxSizeMB)
}

func (suite *ConfigTestSuite) TestLoadConfigWithFile() {
	configFile := suite.writeConfig("config.yaml", `
index:
  volumes: ["C:", "D:"]
  skipElevation: true
  allowFallback: false
  bufferSize: 65536
  exclude:
    - "node_modules/"
    - "*.tmp"
search:
  maxResults: 50
  includeHidden: false
log:
  level: debug
  file: /tmp/volsearch-test.log
`)

	cfg, err := LoadConfig(configFile)
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), []string{"C:", "D:"}, cfg.Index.Volumes)
	assert.True(suite.T(), cfg.Index.SkipElevation)
	assert.False(suite.T(), cfg.Index.AllowFallback)
	assert.Equal(suite.T(), 65536, cfg.Index.BufferSize)
	assert.Equal(suite.T(), []string{"node_modules/", "*.tmp"}, cfg.Index.Exclude)
	assert.Equal(suite.T(), 50, cfg.Search.MaxResults)
	assert.False(suite.T(), cfg.Search.IncludeHidden)
	assert.Equal(suite.T(), "debug", cfg.Log.Level)

	logCfg := cfg.Log.Logger()
	assert.Equal(suite.T(), "/tmp/volsearch-test.log", logCfg.File)
	assert.Equal(suite.T(), 3, logCfg.MaxBackups)

	assert.Equal(suite.T(), cfg.Index.Volumes, AppConfig.Index.Volumes)
}

func (suite *ConfigTestSuite) TestLoadConfigFromWorkingDirectory() {
	suite.writeConfig("config.yaml", "search:\n  maxResults: 7\n")
	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 7, cfg.Search.MaxResults)
}

func (suite *ConfigTestSuite) TestEnvironmentOverride() {
	suite.T().Setenv("VOLSEARCH_INDEX_SKIPELEVATION", "true")
	suite.T().Setenv("VOLSEARCH_SEARCH_MAXRESULTS", "25")
	suite.T().Setenv("VOLSEARCH_LOG_LEVEL", "warn")

	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)
	assert.True(suite.T(), cfg.Index.SkipElevation)
	assert.Equal(suite.T(), 25, cfg.Search.MaxResults)
	assert.Equal(suite.T(), "warn", cfg.Log.Level)
}

func (suite *ConfigTestSuite) TestBoundValueWins() {
	v := viper.New()
	v.Set("index.skipElevation", true)
	cfg, err := Load(v, "")
	require.NoError(suite.T(), err)
	assert.True(suite.T(), cfg.Index.SkipElevation)
}

func (suite *ConfigTestSuite) TestLoadConfigInvalidFile() {
	// an explicit path that does not exist is an error
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), cfg)
}

func (suite *ConfigTestSuite) TestLoadConfigMalformedFile() {
	configFile := suite.writeConfig("malformed.yaml", `
index:
  volumes: [unclosed bracket
`)
	cfg, err := LoadConfig(configFile)
	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), cfg)
}

func (suite *ConfigTestSuite) TestValidation() {
	configFile := suite.writeConfig("bad.yaml", `
index:
  bufferSize: 4096
  maxBufferSize: 1024
  pipelineDepth: 0
`)
	cfg, err := LoadConfig(configFile)
	require.Error(suite.T(), err)
	assert.Nil(suite.T(), cfg)
	assert.Contains(suite.T(), err.Error(), "index.maxBufferSize")
	assert.Contains(suite.T(), err.Error(), "index.pipelineDepth")
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

// BenchmarkLoadConfig benchmarks config loading performance
func BenchmarkLoadConfig(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := LoadConfig(""); err != nil {
			b.Fatal(err)
		}
	}
}
