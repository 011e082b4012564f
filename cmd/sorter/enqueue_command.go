package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cardsorter/internal/api"
	"cardsorter/internal/ipc"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "enqueue [name[:confidence]...]",
		Short: "Queue recognized items for the pipeline",
		Long: "Queue recognized items for the pipeline.\n\n" +
			"Items are given as name or name:confidence arguments, or as a JSON\n" +
			"array of {name, confidence, thumbnail} objects via --file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := parseItemArgs(args)
			if err != nil {
				return err
			}
			if file != "" {
				fromFile, err := loadItemsFile(file)
				if err != nil {
					return err
				}
				items = append(items, fromFile...)
			}
			if len(items) == 0 {
				return fmt.Errorf("no items given; pass names or --file")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Enqueue(ipc.EnqueueRequest{Items: items})
				if err != nil {
					return err
				}
				return ctx.emit(cmd, resp, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "Queued %d item(s); %d pending\n", resp.Accepted, resp.Pending)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with items to queue")
	return cmd
}

// parseItemArgs splits "name:confidence" at the last colon. A suffix that is
// not a number is kept as part of the name.
func parseItemArgs(args []string) ([]api.Item, error) {
	items := make([]api.Item, 0, len(args))
	for _, arg := range args {
		name := strings.TrimSpace(arg)
		confidence := api.DefaultConfidence
		if idx := strings.LastIndex(name, ":"); idx > 0 {
			if parsed, err := strconv.ParseFloat(strings.TrimSpace(name[idx+1:]), 64); err == nil {
				confidence = parsed
				name = strings.TrimSpace(name[:idx])
			}
		}
		if name == "" {
			return nil, fmt.Errorf("item %q has an empty name", arg)
		}
		items = append(items, api.Item{Name: name, Confidence: api.Confidence(confidence)})
	}
	return items, nil
}

func loadItemsFile(path string) ([]api.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read items file: %w", err)
	}
	var items []api.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse items file %s: %w", path, err)
	}
	return items, nil
}
