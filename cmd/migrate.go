package main

import (
	"github.com/spf13/cobra"
)

func newMigrateCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "创建或更新表结构",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(root, true)
			if err != nil {
				return err
			}
			defer a.close()
			a.logger.Info("数据库表结构检查完成")
			return nil
		},
	}
}
