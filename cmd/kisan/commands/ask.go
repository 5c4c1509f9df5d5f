package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/advisor"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/confidence"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/logging"
)

// NewAskCmd constructs the `kisan ask` command, which answers one question
// and prints it with its sources and confidence.
func NewAskCmd() *cobra.Command {
	var (
		conversation string
		language     string
		file         string
		simplify     bool
		followUps    bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the advisor a question",
		Long: `Ask a farming question and print a grounded answer.

Pass --conversation with the ID printed by a previous ask to continue the
same conversation. --file attaches a .txt, .pdf or .docx document.

Examples:
  kisan ask "When should I sow wheat in Punjab?"
  kisan ask --lang hi "गेहूं में पीला रतुआ कैसे रोकें?"
  kisan ask -c 6f1c... --follow-ups "And how much urea per acre?"
  kisan ask --file soil_report.pdf "What does my soil report recommend?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			rt, err := buildRuntime(ctx, log, nil)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer rt.Close()

			if conversation == "" {
				conversation = uuid.NewString()
			}
			req := advisor.Request{
				Question:       strings.Join(args, " "),
				ConversationID: conversation,
				Language:       language,
				Simplify:       simplify,
				FollowUps:      followUps,
			}
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("ask: %w", err)
				}
				req.File = &advisor.Upload{Name: filepath.Base(file), Data: data}
			}

			ans, err := rt.advisor.Answer(ctx, req)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			printAnswer(cmd.OutOrStdout(), ans)
			return nil
		},
	}

	cmd.Flags().StringVarP(&conversation, "conversation", "c", "", "Conversation ID to continue (default: new conversation)")
	cmd.Flags().StringVarP(&language, "lang", "l", "", "Answer language: en, hi, mr (default: detected)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Attach a .txt, .pdf or .docx document")
	cmd.Flags().BoolVar(&simplify, "simplify", false, "Rewrite the answer in plain language")
	cmd.Flags().BoolVar(&followUps, "follow-ups", false, "Suggest three follow-up questions")

	return cmd
}

// badgeColors maps a badge colour name to its terminal style.
var badgeColors = map[string]*color.Color{
	"green":  color.New(color.FgGreen, color.Bold),
	"yellow": color.New(color.FgYellow, color.Bold),
	"red":    color.New(color.FgRed, color.Bold),
}

func printAnswer(w io.Writer, ans *advisor.Answer) {
	bold := color.New(color.Bold).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	fmt.Fprintln(w, ans.Text)

	if ans.Notice != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, color.New(color.FgYellow).Sprint(ans.Notice))
	}

	fmt.Fprintln(w)
	switch {
	case ans.Degraded:
		fmt.Fprintln(w, faint("Knowledge base unavailable: answered from the conversation only."))
	case ans.Confidence != nil && ans.Badge != nil:
		style, ok := badgeColors[ans.Badge.Color]
		if !ok {
			style = color.New(color.Bold)
		}
		fmt.Fprintf(w, "%s %s\n", style.Sprint(ans.Badge.Label), faint(fmt.Sprintf("(%d/100)", *ans.Confidence)))
	}

	if len(ans.Citations) > 0 {
		fmt.Fprintln(w, bold("Sources"))
		for _, c := range ans.Citations {
			title := c.Title
			if title == "" {
				title = c.SourceID
			}
			fmt.Fprintf(w, "  [%d] %s %s\n", c.Rank, title, tierMark(c.Tier, c.ConfidenceScore))
		}
	}

	if len(ans.FollowUps) > 0 {
		fmt.Fprintln(w, bold("You could also ask"))
		for _, q := range ans.FollowUps {
			fmt.Fprintf(w, "  - %s\n", q)
		}
	}

	fmt.Fprintf(w, "\n%s %s\n", faint("conversation:"), cyan(ans.ConversationID))
}

// tierMark renders a citation's score in its tier colour.
func tierMark(t confidence.Tier, score int) string {
	style := badgeColors[confidence.BadgeFor(t).Color]
	return style.Sprintf("%d%%", score)
}
