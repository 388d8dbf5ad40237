package catalog

// SampleFileName is the starter catalog written by `rolechain init`.
const SampleFileName = "starter.yaml"

// SampleYAML defines a few roles and templates to start from.
const SampleYAML = `# Roles are addressed by id from template steps. A step may be a bare
# label (used as both name and role) or a mapping with name, role and an
# optional prompt where {input} becomes the task input and {prev} the
# previous step's output.

roles:
  - id: assistant
    name: Assistant
    system_prompt: You are a helpful assistant. Answer concisely.

  - id: writer
    name: Writer
    system_prompt: You write clear, well structured drafts in Markdown.

  - id: critic
    name: Critic
    system_prompt: You review drafts and list concrete weaknesses.

  - id: editor
    name: Editor
    system_prompt: You revise drafts using the reviewer's notes.

templates:
  - id: draft-review
    name: Draft and review
    description: Write a draft, critique it, then revise it.
    steps:
      - writer
      - critic
      - name: Revise
        role: editor
        prompt: |
          Original request: {input}

          Review notes on the draft:
          {prev}

          Produce the final revised version.

  - id: summarize
    name: Summarize
    steps:
      - assistant
`
