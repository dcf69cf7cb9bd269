package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/tgc-rag/internal/index"
	"github.com/JakeFAU/tgc-rag/internal/vectorstore"
)

const (
	peekLimit         = 3
	peekContentRunes  = 150
	queryContentRunes = 200
)

func newInspectCmd() *cobra.Command {
	var (
		query string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print index statistics and sample documents, optionally running a query",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runInspect(cmd.Context(), cmd.OutOrStdout(), a, query, limit)
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "question to run against the index")
	cmd.Flags().IntVar(&limit, "limit", 5, "number of query results")
	return cmd
}

func runInspect(ctx context.Context, w io.Writer, a App, query string, limit int) error {
	cfg := a.Config()
	name := cfg.Index.Collection
	if name == "" {
		name = index.DefaultCollection
	}
	vs, err := a.OpenIndex(ctx, true)
	if errors.Is(err, vectorstore.ErrStoreNotFound) {
		fmt.Fprintf(w, "No index at %s. Run: tgcrag ingest\n", cfg.Index.Path)
		return nil
	}
	if err != nil {
		return err
	}
	coll, err := vs.GetCollection(ctx, name)
	if errors.Is(err, vectorstore.ErrCollectionNotFound) {
		fmt.Fprintf(w, "Collection %s not found. Run: tgcrag ingest\n", name)
		return nil
	}
	if err != nil {
		return err
	}

	count, err := coll.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Collection: %s\n", coll.Name())
	fmt.Fprintf(w, "Total chunks: %d\n", count)

	if count > 0 {
		sample, err := coll.Peek(ctx, peekLimit)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "\n--- Sample Documents ---")
		for i, rec := range sample {
			m := rec.Metadata
			fmt.Fprintf(w, "\n%d. %s (%s)\n", i+1, m[index.MetaTitle], m[index.MetaSection])
			fmt.Fprintf(w, "   Author: %s, Date: %s\n", m[index.MetaAuthor], m[index.MetaDate])
			fmt.Fprintf(w, "   URL: %s\n", m[index.MetaSourceURL])
			fmt.Fprintf(w, "   Content: %s...\n", clip(rec.Document, peekContentRunes))
		}
	}

	if query == "" {
		return nil
	}
	client, err := a.OpenAI()
	if err != nil {
		fmt.Fprintln(w, "\nError: OPENAI_API_KEY not set. Cannot perform query.")
		return nil
	}
	embedding, err := client.Embed(ctx, query)
	if err != nil {
		return fmt.Errorf("embed query: %w", err)
	}
	hits, err := coll.Query(ctx, embedding, vectorstore.QueryOptions{N: max(limit, 1)})
	if err != nil {
		return fmt.Errorf("query index: %w", err)
	}
	fmt.Fprintf(w, "\n--- Query: '%s' ---\n", query)
	for i, hit := range hits {
		m := hit.Metadata
		fmt.Fprintf(w, "\n%d. %s (distance: %.4f)\n", i+1, m[index.MetaTitle], hit.Distance)
		fmt.Fprintf(w, "   Section: %s, Author: %s\n", m[index.MetaSection], m[index.MetaAuthor])
		fmt.Fprintf(w, "   URL: %s\n", m[index.MetaSourceURL])
		fmt.Fprintf(w, "   Content: %s...\n", clip(hit.Document, queryContentRunes))
	}
	return nil
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
