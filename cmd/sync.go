package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"LundaSync/internal/model"

	"github.com/spf13/cobra"
)

func newSyncCommand(root *rootOptions) *cobra.Command {
	var (
		snapshot string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "执行一次同步批次",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(root, true)
			if err != nil {
				return err
			}
			defer a.close()

			notifier, err := a.notifier()
			if err != nil {
				return err
			}
			defer notifier.Close()

			syncService, err := a.syncService(snapshot, notifier)
			if err != nil {
				return err
			}
			sum, runErr := syncService.Run(cmd.Context())
			if sum != nil {
				if asJSON {
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					if err := enc.Encode(sum); err != nil {
						return err
					}
				} else {
					printSummary(sum.Fields())
				}
			}
			if runErr != nil {
				return runErr
			}
			if sum.Status == model.RunFailed {
				return fmt.Errorf("同步批次失败: %v", sum.Errors)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "覆盖配置中的快照位置")
	cmd.Flags().BoolVar(&asJSON, "json", false, "以 JSON 输出批次摘要")
	return cmd
}

func printSummary(fields map[string]interface{}) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%-22s %v\n", k, fields[k])
	}
}
