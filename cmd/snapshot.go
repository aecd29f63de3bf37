package main

import (
	"fmt"
	"strings"
	"time"

	"LundaSync/internal/adapter"
	"LundaSync/internal/adapter/file"
	"LundaSync/internal/snapshot"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"
)

func newSnapshotCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "本地快照文件工具",
	}
	cmd.AddCommand(newAddParticipantCommand(root))
	return cmd
}

func newAddParticipantCommand(root *rootOptions) *cobra.Command {
	var (
		path     string
		location string
		startsAt string
		name     string
	)
	cmd := &cobra.Command{
		Use:   "add-participant",
		Short: "手工向快照中的赛事追加参赛者（写入前备份 .bak）",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(root, false)
			if err != nil {
				return err
			}
			if path == "" {
				path = a.cfg.Sync.Snapshot
			}
			if adapter.SchemeOf(path) != file.Scheme {
				return fmt.Errorf("只能修改本地快照文件: %s", path)
			}
			path = strings.TrimPrefix(path, "file://")

			start, err := parseStartsAt(startsAt, time.Now(), a.engine.Location)
			if err != nil {
				return err
			}
			res, err := snapshot.AddParticipantFile(path, location, start, name, a.engine.Location)
			if err != nil {
				return err
			}
			if !res.Added {
				fmt.Printf("%s 已在「%s」名单中，未修改\n", name, res.Title)
				return nil
			}
			fmt.Printf("已将 %s 加入「%s」，备份: %s\n", name, res.Title, res.BackupPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "快照文件（默认 sync.snapshot）")
	cmd.Flags().StringVar(&location, "location", "", "场地或赛事标题")
	cmd.Flags().StringVar(&startsAt, "starts-at", "", "开赛时间，如 2025-06-12T18:00 或 \"next friday 18:00\"")
	cmd.Flags().StringVar(&name, "name", "", "参赛者全名")
	_ = cmd.MarkFlagRequired("location")
	_ = cmd.MarkFlagRequired("starts-at")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// parseStartsAt 先按快照里的时间格式解析，失败时按自然语言（相对 base）解析
func parseStartsAt(text string, base time.Time, loc *time.Location) (time.Time, error) {
	if t, err := snapshot.ParseTime(text, loc); err == nil {
		return t, nil
	}
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	r, err := w.Parse(text, base.In(loc))
	if err != nil {
		return time.Time{}, fmt.Errorf("解析开赛时间失败: %w", err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("无法识别开赛时间: %q", text)
	}
	return r.Time.In(loc).Truncate(time.Minute), nil
}
