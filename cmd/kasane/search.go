package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/hyperjump/kasane/internal/config"
	"github.com/hyperjump/kasane/internal/models"
	"github.com/hyperjump/kasane/pkg/utils"
)

var errNoQuery = errors.New("query is required")

type searchOptions struct {
	serverURL    string
	output       string
	vectorWeight float64
	minCombined  float64
	rerank       bool
}

func newSearchCmd(flags *globalFlags) *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a hybrid search",
		Long: `Run a hybrid search. The query is all remaining arguments joined by spaces, so
multi-word queries work with or without quotes.`,
		Example: `  kasane search machine learning
  kasane search --vector-weight 0.3 "nba"
  kasane search --server http://localhost:8080 --output json nba`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := buildSearchQuery(args)
			if query == "" {
				return errNoQuery
			}
			patch := opts.patch(cmd)
			var (
				resp *models.SearchResponse
				err  error
			)
			if opts.serverURL != "" {
				resp, err = searchViaHTTP(cmd.Context(), opts.serverURL, query, patch)
			} else {
				resp, err = searchDirect(cmd.Context(), flags, query, patch)
			}
			if err != nil {
				return err
			}
			return writeSearchResponse(cmd.OutOrStdout(), resp, opts.output)
		},
	}
	cmd.Flags().StringVar(&opts.serverURL, "server", "", "server URL; empty searches the local store directly")
	cmd.Flags().StringVar(&opts.output, "output", "text", "output format: text or json")
	cmd.Flags().Float64Var(&opts.vectorWeight, "vector-weight", 0, "override the vector weight for this query")
	cmd.Flags().Float64Var(&opts.minCombined, "min-combined-score", 0, "override the combined score floor for this query")
	cmd.Flags().BoolVar(&opts.rerank, "rerank", false, "enable reranking for this query")
	return cmd
}

// patch collects the per-query overrides the user actually set.
func (o *searchOptions) patch(cmd *cobra.Command) *config.SearchConfigPatch {
	p := config.SearchConfigPatch{}
	if cmd.Flags().Changed("vector-weight") {
		p.VectorWeight = &o.vectorWeight
	}
	if cmd.Flags().Changed("min-combined-score") {
		p.MinCombinedScore = &o.minCombined
	}
	if cmd.Flags().Changed("rerank") {
		p.EnableReranking = &o.rerank
	}
	if p.Empty() {
		return nil
	}
	return &p
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func searchDirect(ctx context.Context, flags *globalFlags, query string, patch *config.SearchConfigPatch) (*models.SearchResponse, error) {
	cfg, logger, err := flags.setup()
	if err != nil {
		return nil, err
	}
	defer func() { _ = logger.Sync() }()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer components.Close()
	if err := components.EnsureIndexed(ctx); err != nil {
		return nil, err
	}

	var override *config.SearchConfig
	if patch != nil {
		c, err := patch.Apply(components.Configs.Active())
		if err != nil {
			return nil, err
		}
		override = &c
	}
	start := time.Now()
	result, err := components.Engine.Search(ctx, query, override)
	if err != nil {
		return nil, err
	}
	resp := models.NewSearchResponse(result, components.Engine.Settings().GroupField)
	resp.QueryTime = time.Since(start).Milliseconds()
	return resp, nil
}

func searchViaHTTP(ctx context.Context, serverURL, query string, patch *config.SearchConfigPatch) (*models.SearchResponse, error) {
	endpoint, err := url.JoinPath(serverURL, "/api/v1/search")
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	body, err := json.Marshal(map[string]interface{}{"query": query, "config": patch})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: 30 * time.Second}
	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(res.Body, 4<<10)).Decode(&e)
		return nil, fmt.Errorf("server returned %d: %s", res.StatusCode, e.Error)
	}
	var resp models.SearchResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &resp, nil
}

func writeSearchResponse(w io.Writer, resp *models.SearchResponse, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	if format != "text" {
		return fmt.Errorf("unknown output format %q (supported: text, json)", format)
	}

	meta := resp.SearchMetadata
	fmt.Fprintf(w, "Query: %q (normalized %q)\n", meta.Query, meta.NormalizedQuery)
	fmt.Fprintf(w, "Weights: vector=%.2f keyword=%.2f  candidates=%d  qualifying=%d  %dms\n",
		meta.Weights.Vector, meta.Weights.Keyword, meta.TotalCandidates, meta.TotalQualifyingMatches, resp.QueryTime)
	if meta.DegradedSource != "" {
		fmt.Fprintf(w, "Warning: %s source unavailable, results use the other source only\n", meta.DegradedSource)
	}
	if resp.ExactMatch != nil {
		fmt.Fprintln(w, "\nExact match:")
		writeMatch(w, *resp.ExactMatch)
	}
	if len(resp.Matches) == 0 {
		if resp.ExactMatch == nil {
			fmt.Fprintln(w, "\nNo matches.")
		}
		return nil
	}
	fmt.Fprintln(w, "\nMatches:")
	for _, m := range resp.Matches {
		writeMatch(w, m)
	}
	if len(meta.MatchesPerGroup) > 0 {
		fmt.Fprintln(w, "\nGroups:")
		for _, g := range meta.MatchesPerGroup {
			fmt.Fprintf(w, "  %-20s %d\n", g.Group, g.Count)
		}
	}
	return nil
}

func writeMatch(w io.Writer, m models.MatchView) {
	marker := ""
	if m.Reranked {
		marker = " (reranked)"
	}
	fmt.Fprintf(w, "  %3d. %-24s combined=%.3f vector=%.3f keyword=%.3f%s\n",
		m.Rank, m.ID, m.Scores.Combined, m.Scores.Vector, m.Scores.Keyword, marker)
	if text := m.Metadata.String("text"); text != "" {
		fmt.Fprintf(w, "       %s\n", utils.Truncate(text, 100))
	}
}
