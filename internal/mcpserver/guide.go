package mcpserver

// LifecycleGuide explains how binning works so LLM clients pick the right
// tool.
const LifecycleGuide = `# estatehub Bin Rules

Entities form a tree: project -> properties, case studies; case study -> posts;
post -> images.

- **bin_entity** moves an entity to the bin. Its children are untouched but
  become read-only while any ancestor is binned.
- **restore_entity** brings a binned entity back. Children that were not
  binned themselves become editable again.
- **purge_entity** deletes an entity and its whole subtree permanently.
  There is no undo.
- **list_bin** shows what is currently binned, newest first.

Kinds are ` + "`project`, `property`, `case_study` and `post`." + `
Binning an entity that is already binned succeeds and changes nothing.
`
