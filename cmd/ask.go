package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/thapargpt/thapargpt/internal/app"
	"github.com/thapargpt/thapargpt/internal/assistant"
)

var (
	flagAskFile    string
	flagAskSession string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a one-shot question",
	Long: `Ask answers a single question and exits. With --file, the
attachment is analyzed along with the question; the question may then be
omitted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := ""
		if len(args) > 0 {
			question = args[0]
		}
		return runAsk(cmd.Context(), question)
	},
}

func init() {
	askCmd.Flags().StringVar(&flagAskFile, "file", "", "attachment to analyze (image, PDF, or text file)")
	askCmd.Flags().StringVar(&flagAskSession, "session", "", "session UUID for conversation continuity")
	rootCmd.AddCommand(askCmd)
}

func runAsk(ctx context.Context, question string) error {
	logger := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if strings.TrimSpace(question) == "" && flagAskFile == "" {
		return assistant.ErrEmptyQuery
	}

	sessionID := uuid.Nil
	if flagAskSession != "" {
		sessionID, err = uuid.Parse(flagAskSession)
		if err != nil {
			return fmt.Errorf("invalid session id %q: %w", flagAskSession, err)
		}
	}

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	defer a.Close()

	var ans assistant.Answer
	if flagAskFile != "" {
		data, err := os.ReadFile(flagAskFile)
		if err != nil {
			return fmt.Errorf("read attachment: %w", err)
		}
		ans, err = a.Assistant.ChatWithFile(ctx, sessionID, question, filepath.Base(flagAskFile), data)
		if err != nil {
			return err
		}
	} else {
		ans, err = a.Assistant.Chat(ctx, sessionID, question)
		if err != nil {
			return err
		}
	}

	fmt.Println(ans.Text)
	if ans.Degraded {
		fmt.Fprintln(os.Stderr, "note: answer is not fully grounded in institute reference material")
	}
	return nil
}
