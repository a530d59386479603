package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/theimaginaryfoundation/chat-organizer/organize"
)

var (
	orgMode       string
	orgOut        string
	orgAPIKey     string
	orgBatchSize  int
	orgCategories []string
)

var organizeCmd = &cobra.Command{
	Use:   "organize <export.json>",
	Short: "Organize an export file in one shot, without the server",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrganize,
}

func init() {
	organizeCmd.Flags().StringVar(&orgMode, "mode", "category", "organize mode: category, month, or year")
	organizeCmd.Flags().StringVarP(&orgOut, "out", "o", "", "output file for the result JSON (default: stdout)")
	organizeCmd.Flags().StringVar(&orgAPIKey, "api-key", "", "OpenAI API key (overrides OPENAI_API_KEY env var; category mode only)")
	organizeCmd.Flags().IntVar(&orgBatchSize, "batch-size", organize.DefaultBatchSize, "sessions per classification request (clamped to 5..100)")
	organizeCmd.Flags().StringSliceVar(&orgCategories, "categories", nil, "custom category list (category mode only)")
	rootCmd.AddCommand(organizeCmd)
}

func runOrganize(cmd *cobra.Command, args []string) error {
	mode := organize.ParseMode(orgMode)

	sessions, err := organize.LoadExport(args[0])
	if err != nil {
		return err
	}
	total := len(sessions)

	var result organize.JobResult
	switch mode {
	case organize.ModeMonth, organize.ModeYear:
		periods := organize.GroupSessionsByDate(sessions, mode)
		result = organize.JobResult{
			Summary: organize.ResultSummary{
				TotalConversations: total,
				TotalGroups:        len(periods.Order),
				GeneratedAt:        time.Now().Format("2006-01-02 15:04:05"),
				OrganizeMode:       string(mode),
			},
			TimePeriods: &periods,
		}

	default:
		apiKey := orgAPIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return errors.New("missing OPENAI_API_KEY (or pass --api-key)")
		}

		categorizer, err := organize.NewCategorizer(apiKey, "")
		if err != nil {
			return err
		}

		progress := func(processed, progressTotal int) {
			fmt.Fprintf(os.Stderr, "categorized %d/%d\r", processed, progressTotal)
		}
		categorized, err := categorizer.Categorize(cmd.Context(), sessions, organize.CategorizeOptions{
			Categories: orgCategories,
			BatchSize:  orgBatchSize,
		}, progress)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr)

		result = organize.JobResult{
			Summary: organize.ResultSummary{
				TotalConversations: total,
				TotalCategories:    len(categorized),
				GeneratedAt:        time.Now().Format("2006-01-02 15:04:05"),
				OrganizeMode:       string(organize.ModeCategory),
			},
			Categories: categorized,
		}
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	out = append(out, '\n')

	if orgOut == "" {
		_, err = os.Stdout.Write(out)
		return err
	}
	return os.WriteFile(orgOut, out, 0o644)
}
