// Command tgcrag ingests articles into a vector index and answers questions
// about them.
//
// Usage:
//
//	tgcrag ingest [--limit N] [--sitemap-limit N] [--workers N] [--dry-run]
//	tgcrag serve [--port N]
//	tgcrag inspect [--query TEXT] [--limit N]
//
// Configuration comes from an optional YAML file (--config) and TGCRAG_*
// environment variables. OPENAI_API_KEY, CHROMA_PATH, TGC_BASE_URL and PORT
// are honoured as well.
package main

import "github.com/JakeFAU/tgc-rag/cmd"

func main() {
	cmd.Execute()
}
