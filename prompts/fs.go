// Package prompts embeds the versioned prompt templates and security
// policy preambles the rag/prompt.Loader reads, so the running binary
// never depends on a prompts/ directory existing on disk.
package prompts

import "embed"

//go:embed policy rag_answer rewrite_query
var FS embed.FS
