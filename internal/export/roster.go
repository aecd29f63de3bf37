// Package export 赛事名单导出为 XLSX，给组织者线下核对
package export

import (
	"fmt"
	"io"
	"time"

	"LundaSync/internal/model"
	"LundaSync/internal/repository"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Roster"

var rosterHeader = []interface{}{"No", "Player", "Payment", "Manual paid", "Manual added", "Active", "Paid at", "First seen", "Last seen"}

// RosterXLSX 第一行写赛事信息，第三行起为名单。时间按 loc 格式化
func RosterXLSX(t *model.Tournament, rows []repository.RosterRow, loc *time.Location) (*excelize.File, error) {
	if loc == nil {
		loc = time.UTC
	}
	f := excelize.NewFile()
	idx, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("创建工作表失败: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("删除默认工作表失败: %w", err)
	}

	title := fmt.Sprintf("%s | %s | %s", t.Title, t.Location, t.StartsAt.In(loc).Format("2006-01-02 15:04"))
	if err := f.SetCellValue(sheetName, "A1", title); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetSheetRow(sheetName, "A2", &rosterHeader); err != nil {
		f.Close()
		return nil, err
	}

	for i, r := range rows {
		paidAt := ""
		if r.PaidAt != nil {
			paidAt = r.PaidAt.In(loc).Format("2006-01-02 15:04")
		}
		values := []interface{}{
			i + 1,
			r.FullName,
			string(r.PaymentStatus),
			yesNo(r.ManualPaid),
			yesNo(r.ManualAdded),
			yesNo(r.Active),
			paidAt,
			r.FirstSeenAt.In(loc).Format("2006-01-02 15:04"),
			r.LastSeenAt.In(loc).Format("2006-01-02 15:04"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+3)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			f.Close()
			return nil, fmt.Errorf("写入第%d行失败: %w", i+1, err)
		}
	}
	_ = f.SetColWidth(sheetName, "B", "B", 28)
	_ = f.SetColWidth(sheetName, "G", "I", 18)
	return f, nil
}

// WriteRoster 生成并写出到 w
func WriteRoster(w io.Writer, t *model.Tournament, rows []repository.RosterRow, loc *time.Location) error {
	f, err := RosterXLSX(t, rows, loc)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("写出名单失败: %w", err)
	}
	return nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
