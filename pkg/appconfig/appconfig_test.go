package appconfig_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawire/wfscan/pkg/appconfig"
)

const sampleYAML = `
wordpress:
  versionDirectoryRegex: '^wordpress-([\d.]+)$'
  directoryExcludeRegex: '^\.git$'
  fileExcludeRegex: '\.pyc$'
  pluginsRoot: wp-content/plugins
  pluginsDirectoryRegex: '^([a-z0-9-]+)$'
  indicatorFiles:
    - /wp-login.php
    - /readme.html
`

func TestLoadFileParsesRegexesAndIndicators(t *testing.T) {
	set, err := appconfig.LoadFile([]byte(sampleYAML))
	require.NoError(t, err)
	cfg, ok := set["wordpress"]
	require.True(t, ok)
	assert.Equal(t, "wordpress", cfg.Name)
	assert.True(t, cfg.VersionDirectoryRegex.MatchString("wordpress-5.9.3"))
	assert.Equal(t, []string{"/wp-login.php", "/readme.html"}, cfg.IndicatorFiles)
	assert.Equal(t, []string{"wordpress"}, set.Names())
}

func TestLoadFileRejectsMultiCaptureVersionRegex(t *testing.T) {
	_, err := appconfig.LoadFile([]byte(`
bad:
  versionDirectoryRegex: '^(a)-(b)$'
`))
	assert.Error(t, err)
}

func TestLoadFileRejectsPluginsRootWithoutRegex(t *testing.T) {
	_, err := appconfig.LoadFile([]byte(`
bad:
  versionDirectoryRegex: '^(v[\d.]+)$'
  pluginsRoot: plugins
`))
	assert.Error(t, err)
}
