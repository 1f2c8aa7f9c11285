package cmd

import (
	"fmt"

	"github.com/Yates-Labs/memctx/internal/ingest"
	"github.com/Yates-Labs/memctx/internal/ingest/github"
	"github.com/spf13/cobra"
)

var (
	indexCollection string
	indexRecursive  bool
	indexGitHub     bool
	indexState      string
	indexMax        int
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index markdown memory files",
	Long: `Chunk the markdown files under a path by heading and add them to the index.

Re-indexing a file replaces its previous chunks. With the memsearch backend
indexing is delegated to memsearch index.

With --github the argument names a repository (owner/repo or its URL) and its
issue and pull request discussions are indexed instead. Set GITHUB_TOKEN to
raise the API rate limit and reach private repositories.

Examples:
  memctx index ./memsearch_data
  memctx index --backend sqlite --collection memsearch_global ~/notes
  memctx index --backend sqlite --github --state closed Yates-Labs/memctx`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().StringVar(&indexCollection, "collection", "", "Target collection (default: project collection)")
	indexCmd.Flags().BoolVar(&indexRecursive, "recursive", true, "Index subdirectories (memsearch backend)")
	indexCmd.Flags().BoolVar(&indexGitHub, "github", false, "Index GitHub issue discussions of the named repository")
	indexCmd.Flags().StringVar(&indexState, "state", "all", "Issue state with --github: open, closed or all")
	indexCmd.Flags().IntVar(&indexMax, "max", github.DefaultMaxIssues, "Maximum issues with --github")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()

	if indexGitHub {
		if a.backend.indexer == nil {
			return fmt.Errorf("--github requires the sqlite or milvus backend, got %s", a.backend.name)
		}
		owner, repo, err := github.ParseRepository(path)
		if err != nil {
			return err
		}
		chunks, err := github.LoadIssues(ctx, github.NewClient(a.cfg.GitHubToken), owner, repo, github.Options{
			State:    indexState,
			Max:      indexMax,
			Comments: true,
		})
		if err != nil {
			return err
		}
		return writeChunks(cmd, a, chunks, owner+"/"+repo)
	}

	if a.backend.cli != nil {
		if indexCollection != "" {
			a.logger.Warn("memsearch index does not take a collection, ignoring", "collection", indexCollection)
		}
		if err := a.backend.cli.Index(ctx, path, indexRecursive); err != nil {
			return err
		}
		stats, err := a.backend.cli.Stats(ctx)
		if err != nil {
			a.logger.Warn("failed to read index stats", "error", err)
			fmt.Fprintln(out, successStyle.Render("✓ Indexed "+path))
			return nil
		}
		fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✓ Indexed %s (%d documents, %d chunks)", path, stats.DocumentCount, stats.ChunkCount)))
		return nil
	}

	chunks, err := ingest.LoadDir(path)
	if err != nil {
		return err
	}
	return writeChunks(cmd, a, chunks, path)
}

func writeChunks(cmd *cobra.Command, a *app, chunks []ingest.Chunk, from string) error {
	out := cmd.OutOrStdout()
	if len(chunks) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("Nothing to index in "+from))
		return nil
	}

	collection := indexCollection
	if collection == "" {
		collection = a.cfg.ProjectCollection
	}
	n, err := a.backend.indexer.Index(cmd.Context(), collection, chunks)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✓ Indexed %d chunks into %s", n, collection)))
	return nil
}
