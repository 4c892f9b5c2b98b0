package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/immxrtalbeast/meshrelay/internal/signaling"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List rooms currently open on the relay",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		rooms, err := signaling.ListRooms(ctx, cfg.RelayURL, nil)
		if err != nil {
			return err
		}

		tbl := table.NewWriter()
		tbl.SetOutputMirror(os.Stdout)
		tbl.SetStyle(table.StyleLight)
		tbl.AppendHeader(table.Row{"Room", "Members", "Participants", "Open since"})
		for _, r := range rooms {
			tbl.AppendRow(table.Row{
				r.ID,
				r.MemberCount,
				strings.Join(r.Members, "\n"),
				r.CreatedAt.Local().Format(time.DateTime),
			})
		}
		if len(rooms) == 0 {
			tbl.AppendRow(table.Row{"-", 0, "", ""})
		}
		tbl.Render()
		return nil
	},
}
