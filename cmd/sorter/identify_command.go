package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"cardsorter/internal/api"
	"cardsorter/internal/ipc"
)

func newIdentifyCommand(ctx *commandContext) *cobra.Command {
	var (
		oracle    string
		collector string
		thumbnail string
		action    string
	)
	cmd := &cobra.Command{
		Use:   "identify <ocr-name>",
		Short: "Match OCR output against the card catalog and assign a slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ipc.IdentifyRequest{
				Name:      args[0],
				Oracle:    strings.TrimSpace(oracle),
				Collector: strings.TrimSpace(collector),
				Thumbnail: strings.TrimSpace(thumbnail),
				Action:    api.IdentifyAction(strings.ToLower(strings.TrimSpace(action))),
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Identify(req)
				if err != nil {
					return err
				}
				return ctx.emit(cmd, resp, func() {
					renderIdentify(cmd.OutOrStdout(), *resp)
				})
			})
		},
	}
	cmd.Flags().StringVar(&oracle, "oracle", "", "OCR text of the rules box")
	cmd.Flags().StringVar(&collector, "collector", "", "OCR text of the collector line")
	cmd.Flags().StringVar(&thumbnail, "thumbnail", "", "Thumbnail reference")
	cmd.Flags().StringVar(&action, "action", string(api.IdentifyPreview), "What to do with the match: preview, commit, or enqueue")
	return cmd
}

func renderIdentify(out io.Writer, resp api.IdentifyResponse) {
	if resp.Matched {
		fmt.Fprintf(out, "Matched:    %s (score %.3f, %s)\n", resp.Name, resp.Score, resp.Method)
	} else {
		fmt.Fprintf(out, "No catalog match; using %q (best score %.3f)\n", resp.Name, resp.Score)
	}
	fmt.Fprintf(out, "Cell:       %s (%s)\n", resp.Assignment.Cell, resp.Assignment.Reason)
	switch resp.Action {
	case api.IdentifyCommit:
		fmt.Fprintln(out, "Placement recorded")
	case api.IdentifyEnqueue:
		fmt.Fprintf(out, "Queued; %d pending\n", resp.Pending)
	}
	if len(resp.Candidates) == 0 {
		return
	}
	rows := make([][]string, 0, len(resp.Candidates))
	for _, c := range resp.Candidates {
		rows = append(rows, []string{
			c.Name,
			dashIfEmpty(strings.TrimSpace(c.SetCode + " " + c.CollectorNumber)),
			fmt.Sprintf("%.3f", c.NameScore),
			fmt.Sprintf("%.3f", c.OracleScore),
			fmt.Sprintf("%.3f", c.CollectorScore),
			fmt.Sprintf("%.3f", c.Total),
		})
	}
	fmt.Fprint(out, renderTable(
		[]string{"Candidate", "Printing", "Name", "Oracle", "Collector", "Total"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
	))
}
