package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/knowd/internal/config"
)

type tagView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type searchResponse struct {
	Notes []struct {
		ID             string    `json:"id"`
		Title          string    `json:"title"`
		Tags           []tagView `json:"tags"`
		RelevanceScore float64   `json:"relevanceScore"`
	} `json:"notes"`
	Links []struct {
		ID             string    `json:"id"`
		URL            string    `json:"url"`
		Title          string    `json:"title"`
		Tags           []tagView `json:"tags"`
		RelevanceScore float64   `json:"relevanceScore"`
	} `json:"links"`
}

type searchRequest struct {
	Query string   `json:"query"`
	Tags  []string `json:"tags,omitempty"`
	Limit *int     `json:"limit,omitempty"`
}

// splitTags parses a comma-separated tag list, dropping blanks.
func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func runSearch(ctx context.Context, c *apiClient, req searchRequest) (searchResponse, error) {
	resp, err := c.post(ctx, "/api/search", req)
	if err != nil {
		return searchResponse{}, err
	}
	var res searchResponse
	if err := decodeJSON(resp, &res); err != nil {
		return searchResponse{}, err
	}
	return res, nil
}

func runContext(ctx context.Context, c *apiClient, query string) (searchResponse, error) {
	resp, err := c.post(ctx, "/api/context", map[string]string{"query": query})
	if err != nil {
		return searchResponse{}, err
	}
	var out struct {
		Status string         `json:"status"`
		Data   searchResponse `json:"data"`
		Error  string         `json:"error"`
	}
	if err := decodeJSON(resp, &out); err != nil {
		return searchResponse{}, err
	}
	if out.Status != "success" {
		return searchResponse{}, fmt.Errorf("context failed: %s", out.Error)
	}
	return out.Data, nil
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search notes and links",
	Long: `Search notes and links by term overlap.

Examples:
  knowd search travel plans
  knowd search "offline maps" --tags travel,japan --limit 5`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tagsStr, _ := cmd.Flags().GetString("tags")

		req := searchRequest{Query: strings.Join(args, " "), Tags: splitTags(tagsStr)}
		if cmd.Flags().Changed("limit") {
			limit, _ := cmd.Flags().GetInt("limit")
			req.Limit = &limit
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		res, err := runSearch(cmd.Context(), client, req)
		if err != nil {
			return err
		}
		printResults(cmd.OutOrStdout(), res)
		return nil
	},
}

func init() {
	searchCmd.Flags().String("tags", "", "comma-separated tag names to include regardless of text match")
	searchCmd.Flags().Int("limit", 10, "maximum notes and maximum links")
}

// --- context ---

var contextCmd = &cobra.Command{
	Use:   "context <query>",
	Short: "Show the few items most relevant to a topic",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		res, err := runContext(cmd.Context(), client, strings.Join(args, " "))
		if err != nil {
			return err
		}
		printResults(cmd.OutOrStdout(), res)
		return nil
	},
}

// --- note ---

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Manage notes",
}

var noteAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a note",
	Long: `Add a note.

Examples:
  knowd note add --title "Packing list" --content "<p>adapter, rail pass</p>" --tags travel
  knowd note add --title "Meeting" --file ./meeting.html`,
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		content, _ := cmd.Flags().GetString("content")
		file, _ := cmd.Flags().GetString("file")
		tagsStr, _ := cmd.Flags().GetString("tags")

		if title == "" {
			return fmt.Errorf("--title is required")
		}
		if file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			content = string(data)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/api/notes", map[string]any{
			"title":   title,
			"content": content,
			"tags":    splitTags(tagsStr),
		})
		if err != nil {
			return err
		}
		var note struct {
			ID string `json:"id"`
		}
		if err := decodeJSON(resp, &note); err != nil {
			return err
		}
		printSuccess("Created note %s", note.ID)
		return nil
	},
}

func init() {
	noteAddCmd.Flags().String("title", "", "note title")
	noteAddCmd.Flags().String("content", "", "note content (HTML allowed)")
	noteAddCmd.Flags().String("file", "", "read content from a file")
	noteAddCmd.Flags().String("tags", "", "comma-separated tags")
	noteCmd.AddCommand(noteAddCmd)
}

// --- link ---

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Manage links",
}

var linkAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Add a link; the page is fetched when no title is given",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		description, _ := cmd.Flags().GetString("description")
		tagsStr, _ := cmd.Flags().GetString("tags")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/api/links", map[string]any{
			"url":         args[0],
			"title":       title,
			"description": description,
			"tags":        splitTags(tagsStr),
		})
		if err != nil {
			return err
		}
		var link struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		}
		if err := decodeJSON(resp, &link); err != nil {
			return err
		}
		printSuccess("Created link %s (%s)", link.ID, link.Title)
		return nil
	},
}

func init() {
	linkAddCmd.Flags().String("title", "", "link title")
	linkAddCmd.Flags().String("description", "", "link description")
	linkAddCmd.Flags().String("tags", "", "comma-separated tags")
	linkCmd.AddCommand(linkAddCmd)
}

// --- tags ---

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List tags",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/api/tags")
		if err != nil {
			return err
		}
		var tags []tagView
		if err := decodeJSON(resp, &tags); err != nil {
			return err
		}
		if len(tags) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No tags.")
			return nil
		}
		for _, t := range tags {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", colorize(colorBold, t.Name), t.Color)
		}
		return nil
	},
}

// --- import ---

var importCmd = &cobra.Command{
	Use:   "import <file.yaml>...",
	Short: "Import seed files directly into the configured store",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.Storage.Backend == "memory" {
			printWarning("storage.backend is memory; imported data is discarded on exit")
		}

		store, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		res, err := importFiles(cmd.Context(), store, args)
		if err != nil {
			return err
		}
		printSuccess("Imported %d notes, %d links, %d tags, %d connections (%d skipped)",
			res.Notes, res.Links, res.Tags, res.Connections, res.Skipped)
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetKey(key, value); err != nil {
			return err
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configSetSecretCmd = &cobra.Command{
	Use:   "set-secret <key> <value>",
	Short: "Store a secret (" + strings.Join(config.SecretKeys(), ", ") + ")",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetSecret(args[0], args[1]); err != nil {
			return err
		}
		printSuccess("Stored %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSetSecretCmd)
}
