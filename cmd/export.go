package main

import (
	"fmt"
	"strconv"

	"LundaSync/internal/export"
	"LundaSync/internal/repository"
	"LundaSync/internal/service"

	"github.com/spf13/cobra"
)

func newExportCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "导出数据",
	}
	cmd.AddCommand(newExportRosterCommand(root))
	return cmd
}

func newExportRosterCommand(root *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "roster <tournament_id>",
		Short: "把一场赛事的名单导出为 xlsx",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || id == 0 {
				return fmt.Errorf("无效的赛事 id: %s", args[0])
			}
			a, err := loadApp(root, true)
			if err != nil {
				return err
			}
			defer a.close()

			store := repository.NewStore(a.db, a.engine.FuzzyBackend)
			roster, err := service.NewRosterService(store).Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			f, err := export.RosterXLSX(roster.Tournament, roster.Entries, a.engine.Location)
			if err != nil {
				return err
			}
			defer f.Close()

			if output == "" {
				output = fmt.Sprintf("roster-%d.xlsx", id)
				if roster.Tournament.Slug != "" {
					output = roster.Tournament.Slug + ".xlsx"
				}
			}
			if err := f.SaveAs(output); err != nil {
				return fmt.Errorf("保存文件失败: %w", err)
			}
			fmt.Printf("已导出 %d 条报名到 %s\n", len(roster.Entries), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "输出文件（默认 <slug>.xlsx）")
	return cmd
}
