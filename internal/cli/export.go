package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"cf-quiz-service/internal/app"
	"cf-quiz-service/internal/config"
	"cf-quiz-service/internal/domain"
	"cf-quiz-service/internal/report"
	"github.com/spf13/cobra"
)

// NewExportCmd renders a stored attempt as a PDF or text report.
func NewExportCmd(configPath *string) *cobra.Command {
	var (
		email   string
		attempt int
		out     string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a recorded attempt as a report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), *configPath, email, attempt, out, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "identity whose history to read")
	cmd.Flags().IntVar(&attempt, "attempt", -1, "attempt index; negative counts from the newest")
	cmd.Flags().StringVar(&out, "out", "", "output file; .pdf writes a PDF, anything else plain text (default stdout)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func runExport(ctx context.Context, configPath, email string, n int, out string, stdout io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	b, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	storage, err := historyStorage(cfg, b)
	if err != nil {
		return err
	}
	identity := domain.NormalizeIdentity(email)
	attempt, err := app.NewHistoryStore(storage).Attempt(ctx, identity, n)
	if err != nil {
		return fmt.Errorf("attempt %d for %s: %w", n, identity, err)
	}
	doc := report.Build(identity, attempt)

	if out == "" {
		return report.WriteText(stdout, doc)
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	if strings.HasSuffix(strings.ToLower(out), ".pdf") {
		err = report.WritePDF(f, doc)
	} else {
		err = report.WriteText(f, doc)
	}
	if err != nil {
		return err
	}
	log.Printf("report written to %s", out)
	return nil
}
