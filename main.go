package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	settingsPath string
	notionKey    string
	databaseID   string
	apiKey       string
	debugMode    bool
	dryRun       bool

	debugEnabled bool
)

// SetDebugMode enables or disables debug logging
func SetDebugMode(enabled bool) {
	debugEnabled = enabled
}

func debugLog(format string, args ...interface{}) {
	if debugEnabled {
		log.Printf("[DEBUG] "+format, args...)
	}
}

var rootCmd = &cobra.Command{
	Use:   "notion-sync",
	Short: "Publish pending Notion pages as Jekyll posts",
	Long: `Pulls pages pending publication from a Notion database, renders them to
markdown, fills in missing slugs and summaries with AI enrichment, rehosts
Notion-hosted images locally, and writes Jekyll posts to _posts/.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real environments set variables directly
		_ = godotenv.Load()

		if notionKey == "" {
			notionKey = os.Getenv("NOTION_API_KEY")
		}
		if notionKey == "" {
			return fmt.Errorf("Notion API key required: use --notion-key or NOTION_API_KEY")
		}
		if databaseID == "" {
			databaseID = os.Getenv("NOTION_DATABASE_ID")
		}
		if databaseID == "" {
			return fmt.Errorf("database ID required: use --database or NOTION_DATABASE_ID")
		}
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}

		SetDebugMode(debugMode)

		if err := ensureConfigExists(); err != nil {
			return fmt.Errorf("ensuring config files exist: %w", err)
		}

		var settings *Settings
		var err error
		if settingsPath != "" {
			settings, err = loadSettingsRequired(settingsPath)
		} else {
			settings, err = loadSettings(getConfigPath("settings.yaml"))
		}
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}

		publisher := buildPublisher(settings)
		_, err = publisher.Run(context.Background())
		return err
	},
}

// buildPublisher wires the real collaborators. Per-record failures are
// reported in the run summary, not returned as errors.
func buildPublisher(settings *Settings) *Publisher {
	workspace := NewNotionWorkspace(notionKey, databaseID)
	renderer := NewNotionRenderer(workspace.client.Block)
	rehoster := NewAssetRehoster(NewHTTPAssetFetcher(), settings.AssetDirectory, settings.RemoteAssetHosts)

	var enricher Enricher
	if apiKey != "" {
		enricher = NewAnthropicEnricher(apiKey, settings.Enrichment)
	} else {
		log.Printf("Warning: ANTHROPIC_API_KEY not set, skipping AI enrichment")
	}

	var persistTo Workspace = workspace
	if dryRun {
		persistTo = nil // dry runs must not write enriched values back
	}
	resolver := NewMetadataResolver(enricher, persistTo, settings.Enrichment.ContentMaxChars)

	publisher := NewPublisher(workspace, renderer, resolver, rehoster, settings)
	publisher.SetDryRun(dryRun)
	return publisher
}

func init() {
	rootCmd.Flags().StringVar(&settingsPath, "settings", "", "Path to custom settings file")
	rootCmd.Flags().StringVar(&notionKey, "notion-key", "", "Notion API key")
	rootCmd.Flags().StringVar(&databaseID, "database", "", "Notion database ID")
	rootCmd.Flags().StringVar(&apiKey, "api-key", "", "Anthropic API key")
	rootCmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Render and resolve without writing files or updating statuses")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
