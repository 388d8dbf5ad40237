package config

// DefaultConfigYAML is written by `rolechain init`.
const DefaultConfigYAML = `# rolechain configuration
#
# Values not specified here use built-in defaults.
# Every key can be overridden with ROLECHAIN_<SECTION>_<KEY>, e.g.
# ROLECHAIN_ENGINE_STEP_DELAY=250ms.

log:
  level: info
  format: auto

server:
  host: 127.0.0.1
  port: 8080

engine:
  # Pause between consecutive steps of a run.
  step_delay: 1s
  # Upper bound for a single agent call. 0s disables it.
  step_timeout: 0s
  # Role used for bare step labels that do not name a catalog role.
  fallback_role: assistant
  # Runs allowed at once by the server. 0 means no limit.
  max_runs: 0
  # Provider for roles that do not name one.
  default_provider: echo

state:
  # sqlite | json
  backend: sqlite
  path: .rolechain/state/rolechain.db

catalog:
  dir: .rolechain/catalog
  watch: true

providers:
  echo:
    type: echo

  openai:
    type: openai
    base_url: https://api.openai.com/v1
    api_key_env: OPENAI_API_KEY
    model: gpt-4o-mini
    max_tokens: 2048
    temperature: 0.7
    timeout: 120s

  anthropic:
    type: anthropic
    base_url: https://api.anthropic.com/v1
    api_key_env: ANTHROPIC_API_KEY
    model: claude-3-5-haiku-latest
    max_tokens: 2048
    timeout: 120s
`
