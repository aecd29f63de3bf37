package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"LundaSync/internal/model"
	"LundaSync/internal/repository"
	"LundaSync/internal/service"

	"github.com/spf13/cobra"
)

type pendingOptions struct {
	Actor string
}

func newPendingCommand(root *rootOptions) *cobra.Command {
	opts := &pendingOptions{}
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "查看与处理待确认姓名",
	}
	cmd.PersistentFlags().StringVar(&opts.Actor, "actor", defaultActor(), "记录在处理结果里的操作人")

	cmd.AddCommand(newPendingListCommand(root))
	cmd.AddCommand(newPendingActionCommand(root, opts, "approve <pending_id> <player_id>", "确认为已有选手并记录别名", 2,
		func(ctx context.Context, svc *service.PendingService, ids []uint64, actor string) (*service.PendingOutcome, error) {
			return svc.Approve(ctx, ids[0], ids[1], actor)
		}))
	cmd.AddCommand(newPendingActionCommand(root, opts, "approve-new <pending_id>", "按原始姓名新建选手", 1,
		func(ctx context.Context, svc *service.PendingService, ids []uint64, actor string) (*service.PendingOutcome, error) {
			return svc.ApproveNew(ctx, ids[0], actor)
		}))
	cmd.AddCommand(newPendingActionCommand(root, opts, "reject <pending_id>", "驳回", 1,
		func(ctx context.Context, svc *service.PendingService, ids []uint64, actor string) (*service.PendingOutcome, error) {
			return svc.Reject(ctx, ids[0], actor)
		}))
	cmd.AddCommand(newPendingActionCommand(root, opts, "snooze <pending_id>", "暂缓，下个批次会重新提出", 1,
		func(ctx context.Context, svc *service.PendingService, ids []uint64, actor string) (*service.PendingOutcome, error) {
			return svc.Snooze(ctx, ids[0], actor)
		}))
	return cmd
}

func defaultActor() string {
	if u := os.Getenv("USER"); u != "" {
		return "cli:" + u
	}
	return "cli"
}

func newPendingListCommand(root *rootOptions) *cobra.Command {
	var (
		status       string
		tournamentID uint64
		page         int
		pageSize     int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "列出待确认记录",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(root, true)
			if err != nil {
				return err
			}
			defer a.close()

			filter := repository.PendingFilter{TournamentID: tournamentID}
			if status != "all" {
				filter.Status = model.PendingStatus(status)
			}
			list, total, err := a.pendingService(nil).List(cmd.Context(), filter, page, pageSize)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTOURNAMENT\tRAW NAME\tSTATUS\tCANDIDATES")
			for _, p := range list {
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n", p.ID, p.TournamentID, p.RawName, p.Status, candidateSummary(p))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Printf("共 %d 条\n", total)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", string(model.PendingOpen), "状态过滤，all 表示全部")
	cmd.Flags().Uint64Var(&tournamentID, "tournament", 0, "只看某场赛事")
	cmd.Flags().IntVar(&page, "page", 1, "页码")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "每页条数")
	return cmd
}

func candidateSummary(p *model.PendingEntry) string {
	candidates, err := p.CandidateList()
	if err != nil {
		return "?"
	}
	parts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		parts = append(parts, fmt.Sprintf("#%d %s (d=%d)", c.PlayerID, c.FullName, c.Distance))
	}
	return strings.Join(parts, "; ")
}

type pendingActionFunc func(ctx context.Context, svc *service.PendingService, ids []uint64, actor string) (*service.PendingOutcome, error)

func newPendingActionCommand(root *rootOptions, opts *pendingOptions, use, short string, nargs int, act pendingActionFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]uint64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseUint(arg, 10, 64)
				if err != nil || id == 0 {
					return fmt.Errorf("无效的 id: %s", arg)
				}
				ids = append(ids, id)
			}

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

			out, err := act(cmd.Context(), a.pendingService(notifier), ids, opts.Actor)
			if err != nil {
				return err
			}
			fmt.Printf("待确认 #%d -> %s\n", out.Pending.ID, out.Pending.Status)
			if out.Player != nil {
				fmt.Printf("选手 #%d %s（新建: %v）\n", out.Player.ID, out.Player.FullName, out.PlayerCreated)
			}
			if out.Entry != nil {
				fmt.Printf("报名 #%d 已生成\n", out.Entry.ID)
			} else if out.Player != nil {
				fmt.Println("赛事已归档，未生成报名")
			}
			return nil
		},
	}
}
