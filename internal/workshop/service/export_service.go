package service

import (
	"context"
	"fmt"

	"github.com/bitfantasy/oficina/internal/workshop/entity"
	"github.com/bitfantasy/oficina/internal/workshop/status"
	"github.com/bitfantasy/oficina/internal/workshop/worksession"
	"github.com/jonboulle/clockwork"
	"github.com/xuri/excelize/v2"
)

// AppointmentExporter 导出数据源
type AppointmentExporter interface {
	FindForExport(ctx context.Context, filters map[string]string) ([]entity.Appointment, error)
}

// ExportService 工单导出
type ExportService struct {
	repo  AppointmentExporter
	clock clockwork.Clock
}

func NewExportService(repo AppointmentExporter, clock clockwork.Clock) *ExportService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ExportService{repo: repo, clock: clock}
}

var appointmentExportHeaders = []string{
	"Código", "Cliente", "Placa", "Mecânico", "Status", "Status original",
	"Agendado", "Início", "Fim", "Tempo de trabalho", "Observações",
}

const exportTimeLayout = "02/01/2006 15:04"

// ExportAppointments 导出工单为xlsx，状态按规范化结果输出，工时为 HH:MM:SS
func (s *ExportService) ExportAppointments(ctx context.Context, filters map[string]string) (*excelize.File, string, error) {
	items, err := s.repo.FindForExport(ctx, filters)
	if err != nil {
		return nil, "", fmt.Errorf("list appointments: %w", err)
	}

	now := s.clock.Now()
	f := excelize.NewFile()
	sheet := "Ordens"
	f.SetSheetName("Sheet1", sheet)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	for i, h := range appointmentExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	var totalSeconds int64
	counts := make(map[status.Canonical]int)
	for idx, a := range items {
		row := idx + 2
		elapsed := a.Elapsed(now)
		totalSeconds += elapsed
		canonical := status.Normalize(a.Status)
		counts[canonical]++

		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), a.Code)
		if a.Customer != nil {
			f.SetCellValue(sheet, fmt.Sprintf("B%d", row), a.Customer.Name)
		}
		if a.Vehicle != nil {
			f.SetCellValue(sheet, fmt.Sprintf("C%d", row), a.Vehicle.Plate)
		}
		if a.Employee != nil {
			f.SetCellValue(sheet, fmt.Sprintf("D%d", row), a.Employee.Name)
		}
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), canonical.String())
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), a.Status)
		if a.ScheduledAt != nil {
			f.SetCellValue(sheet, fmt.Sprintf("G%d", row), a.ScheduledAt.Format(exportTimeLayout))
		}
		if a.StartTime != nil {
			f.SetCellValue(sheet, fmt.Sprintf("H%d", row), a.StartTime.Format(exportTimeLayout))
		}
		if a.FinishedAt != nil {
			f.SetCellValue(sheet, fmt.Sprintf("I%d", row), a.FinishedAt.Format(exportTimeLayout))
		}
		f.SetCellValue(sheet, fmt.Sprintf("J%d", row), worksession.FormatClock(elapsed))
		f.SetCellValue(sheet, fmt.Sprintf("K%d", row), a.Notes)
	}

	// 汇总行
	summaryRow := len(items) + 2
	summaryStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	f.SetCellValue(sheet, fmt.Sprintf("A%d", summaryRow), "Total")
	f.SetCellValue(sheet, fmt.Sprintf("E%d", summaryRow), summarize(counts))
	f.SetCellValue(sheet, fmt.Sprintf("J%d", summaryRow), worksession.FormatClock(totalSeconds))
	f.SetCellStyle(sheet, fmt.Sprintf("A%d", summaryRow), fmt.Sprintf("K%d", summaryRow), summaryStyle)

	colWidths := []float64{18, 24, 10, 18, 14, 18, 17, 17, 17, 12, 30}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	filename := fmt.Sprintf("ordens_%s.xlsx", now.Format("20060102_1504"))
	return f, filename, nil
}

func summarize(counts map[status.Canonical]int) string {
	out := ""
	for _, c := range status.Canonicals() {
		if counts[c] == 0 {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += fmt.Sprintf("%s: %d", c, counts[c])
	}
	return out
}
