package config

import (
	"fmt"
	"os"
)

const exampleConfig = `# warcbuilder configuration
url_prefix: https://example.com/
inputs:
  - ./site

output:
  # name: site            # defaults to the first input's base name
  mode: create            # create | append | overwrite
  gzip: true
  warcinfo: true

detection:
  detector: filename      # filename | magic | analysis
  charset: none           # none | auto | analysis | <encoding>
  no_xhtml: false
  mime_overrides:
    - "*.md=text/markdown"
  # analysis_url: ${WARCBUILDER_ANALYSIS_URL}
  # analysis_retry:
  #   max_retries: 2
  #   backoff: exponential  # fixed | linear | exponential
  #   initial_delay: 500ms

filtering:
  exclude:
    - "*.tmp"

derivation:
  index_files: [index.html, index.htm]
  # conversions: conversions.yaml
  # transclusions: transclusions.yaml

# manifest: manifest.csv
# fixed_date: "2019"

log:
  level: info
  format: text
  # item_log: records.csv

# metrics:
#   textfile: warcbuilder.prom
`

// Init writes an example configuration file. An existing file is only
// replaced when force is set.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
