// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/consensus-engine/internal/archive"
	"github.com/pdiddy/consensus-engine/pkg/types"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Query archived deliberation sessions",
	Long: `Archive searches the local session archive with FTS5 full-text search
and a session-id prefix filter, or exports it wholesale as YAML.`,
}

var archiveRetrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Search archived sessions",
	RunE:  runArchiveRetrieve,
}

var archiveExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the archive to <archive-dir>/index/export.yaml",
	RunE:  runArchiveExport,
}

func init() {
	archiveCmd.PersistentFlags().String("archive-dir", "", "archive directory (default: ./archive)")
	archiveRetrieveCmd.Flags().String("session", "", "filter by session id")
	archiveRetrieveCmd.Flags().Int("max-results", 0, "maximum number of results (default 20)")
	archiveRetrieveCmd.Flags().Bool("json", false, "output results as JSON")

	archiveCmd.AddCommand(archiveRetrieveCmd)
	archiveCmd.AddCommand(archiveExportCmd)
	rootCmd.AddCommand(archiveCmd)
}

func archiveStore(cmd *cobra.Command) (*archive.Store, error) {
	dir, _ := cmd.Flags().GetString("archive-dir")
	if dir == "" {
		dir = viper.GetString("archive.dir")
	}
	if dir == "" {
		dir = "archive"
	}
	return archive.NewStore(types.ArchiveConfig{
		ArchiveDir: dir,
		MaxResults: viper.GetInt("archive.max_results"),
	})
}

func runArchiveRetrieve(cmd *cobra.Command, args []string) error {
	store, err := archiveStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	session, _ := cmd.Flags().GetString("session")
	maxResults, _ := cmd.Flags().GetInt("max-results")
	opts := archive.QueryOptions{
		Query:      strings.Join(args, " "),
		MaxResults: maxResults,
	}
	if session != "" {
		opts.KeyPrefix = "session/" + session
	}

	docs, err := store.Retrieve(context.Background(), opts)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(docs)
	}
	for _, d := range docs {
		fmt.Printf("%s  (%s)\n", d.Key, d.CreatedAt.Format("2006-01-02 15:04"))
		if q := d.Metadata["quality_score"]; q != "" {
			fmt.Printf("  quality=%s consensus=%s\n", q, d.Metadata["consensus_level"])
		}
		if p := d.Metadata["prompt"]; p != "" {
			fmt.Printf("  prompt: %s\n", p)
		}
	}
	fmt.Fprintf(os.Stderr, "%d document(s)\n", len(docs))
	return nil
}

func runArchiveExport(cmd *cobra.Command, args []string) error {
	store, err := archiveStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.ExportYAML(context.Background(), archive.QueryOptions{})
}
