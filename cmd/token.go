package main

import (
	"fmt"

	"LundaSync/internal/api"

	"github.com/spf13/cobra"
)

func newTokenCommand(root *rootOptions) *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "签发管理接口令牌",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(root, false)
			if err != nil {
				return err
			}
			tok, err := api.NewTokenIssuer(a.cfg.Admin).Issue(actor)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "actor", defaultActor(), "令牌主体，记录为处理人")
	return cmd
}
