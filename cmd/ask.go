package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/bankquery/internal/model"
	"github.com/sells-group/bankquery/internal/report"
)

var (
	askJSON     bool
	askCSVPath  string
	askXLSXPath string
	askFilePath string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a banking question",
	Long:  "Resolves the question against the metric vocabulary, generates and validates a query plan, computes the answer, and prints the explanation.",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "ask")
		if err != nil {
			return err
		}
		defer env.Close()

		if askFilePath != "" {
			return askBatch(cmd, env, askFilePath)
		}

		question := strings.TrimSpace(strings.Join(args, " "))
		if question == "" {
			return eris.New("provide a question, or --file with one question per line")
		}

		answer, err := env.Pipeline.Run(ctx, question)
		if err != nil {
			return eris.Wrap(err, "run query")
		}

		return emitAnswer(cmd, answer)
	},
}

func emitAnswer(cmd *cobra.Command, answer *model.Answer) error {
	if askCSVPath != "" {
		if err := report.SaveCSV(askCSVPath, answer.Result); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", askCSVPath)
	}
	if askXLSXPath != "" {
		if err := report.SaveXLSX(askXLSXPath, answer); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", askXLSXPath)
	}

	if askJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	}

	fmt.Fprintln(cmd.OutOrStdout(), answer.Explanation)
	return nil
}

// askBatch answers one question per non-empty line of the file, bounded by
// the configured concurrency. Answers print in input order once all runs
// finish.
func askBatch(cmd *cobra.Command, env *queryEnv, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	var questions []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			questions = append(questions, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return eris.Wrapf(err, "read %s", path)
	}
	if len(questions) == 0 {
		return eris.Errorf("no questions in %s", path)
	}

	answers := make([]*model.Answer, len(questions))
	g, gCtx := errgroup.WithContext(cmd.Context())
	g.SetLimit(cfg.Pipeline.MaxConcurrent)

	for i, q := range questions {
		g.Go(func() error {
			answer, err := env.Pipeline.Run(gCtx, q)
			if err != nil {
				return eris.Wrapf(err, "question %d", i+1)
			}
			answers[i] = answer
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	zap.L().Info("batch complete", zap.Int("questions", len(questions)))

	if askJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(answers)
	}
	for i, answer := range answers {
		fmt.Fprintf(cmd.OutOrStdout(), "=== %d. %s\n\n%s\n\n", i+1, questions[i], answer.Explanation)
	}
	return nil
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the full answer as JSON")
	askCmd.Flags().StringVar(&askCSVPath, "csv", "", "write result rows to a CSV file")
	askCmd.Flags().StringVar(&askXLSXPath, "xlsx", "", "write the answer to an XLSX workbook")
	askCmd.Flags().StringVar(&askFilePath, "file", "", "answer one question per line of a file")
	rootCmd.AddCommand(askCmd)
}
