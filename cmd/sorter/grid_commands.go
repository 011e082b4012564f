package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cardsorter/internal/api"
	"cardsorter/internal/assign"
	"cardsorter/internal/daemonctl"
	"cardsorter/internal/ipc"
)

func newGridCommand(ctx *commandContext) *cobra.Command {
	gridCmd := &cobra.Command{
		Use:   "grid",
		Short: "Show the slot grid with capacities and counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := fetchGrid(cmd, ctx)
			if err != nil {
				return err
			}
			return ctx.emit(cmd, resp, func() {
				renderGrid(cmd.OutOrStdout(), resp)
			})
		},
	}

	gridCmd.AddCommand(&cobra.Command{
		Use:   "reload",
		Short: "Reload the grid from its configured source",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Grid(true)
				if err != nil {
					return err
				}
				return ctx.emit(cmd, resp, func() {
					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "Grid reloaded from %s: %d slots, error slot %s\n", resp.Source, len(resp.Slots), resp.ErrorSlot)
					if resp.Fallback {
						fmt.Fprintln(out, "Source unavailable; using the built-in default grid")
					}
				})
			})
		},
	})

	return gridCmd
}

// fetchGrid prefers the daemon's view, which carries live counts. An offline
// grid is built from config with zero counts.
func fetchGrid(cmd *cobra.Command, ctx *commandContext) (api.GridResponse, error) {
	client, err := ctx.dialClient()
	if err == nil {
		defer client.Close()
		resp, err := client.Grid(false)
		if err != nil {
			return api.GridResponse{}, err
		}
		return *resp, nil
	}
	state, err := daemonctl.LoadGrid(cmd.Context(), ctx.configValue(), ctx.cliLogger())
	if err != nil {
		return api.GridResponse{}, err
	}
	return api.FromGridState(state, assign.Occupancy{}), nil
}

func renderGrid(out io.Writer, resp api.GridResponse) {
	rows := make([][]string, 0, len(resp.Slots))
	for _, slot := range resp.Slots {
		capacity := strconv.Itoa(slot.Capacity)
		if slot.Unbounded {
			capacity = "∞"
		}
		letters := strings.Join(slot.Letters, "")
		if slot.ErrorSlot {
			letters = "(error)"
		}
		rows = append(rows, []string{
			slot.ID,
			fmt.Sprintf("%.1f, %.1f, %.1f", slot.X, slot.Y, slot.Z),
			capacity,
			strconv.Itoa(slot.Count),
			dashIfEmpty(letters),
		})
	}
	fmt.Fprintf(out, "Source: %s", resp.Source)
	if resp.Fallback {
		fmt.Fprint(out, " (fallback)")
	}
	fmt.Fprintf(out, "  Columns: %s  Rows: %d\n", strings.Join(resp.Columns, ""), resp.Rows)
	fmt.Fprint(out, renderTable(
		[]string{"Slot", "Position", "Capacity", "Count", "Letters"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	))
}

func newAlphabetMapCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "alpha-map",
		Aliases: []string{"alphabet"},
		Short:   "Show which slot each letter sorts into",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp api.AlphabetMapResponse
			client, err := ctx.dialClient()
			if err == nil {
				defer client.Close()
				remote, err := client.AlphabetMap()
				if err != nil {
					return err
				}
				resp = *remote
			} else {
				state, err := daemonctl.LoadGrid(cmd.Context(), ctx.configValue(), ctx.cliLogger())
				if err != nil {
					return err
				}
				resp = api.FromAlphabetMap(state.AlphabetMap)
			}
			return ctx.emit(cmd, resp, func() {
				renderAlphabetMap(cmd.OutOrStdout(), resp)
			})
		},
	}
}

func renderAlphabetMap(out io.Writer, resp api.AlphabetMapResponse) {
	letters := make([]string, 0, len(resp.Letters))
	for letter := range resp.Letters {
		letters = append(letters, letter)
	}
	sort.Strings(letters)
	rows := make([][]string, 0, len(letters))
	for _, letter := range letters {
		rows = append(rows, []string{letter, resp.Letters[letter]})
	}
	fmt.Fprint(out, renderTable([]string{"Letter", "Slot"}, rows, nil))
	fmt.Fprintf(out, "Unmapped letters and low-confidence items go to %s\n", resp.ErrorSlot)
}
