package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/langchou/dtcinsights/internal/kb"
	"github.com/langchou/dtcinsights/internal/models"
)

const timeLayout = "2006-01-02 15:04:05"

// table 表头与行
type table struct {
	header []string
	rows   [][]string
}

// render 按 --output 输出 JSON 或表格
func render(w io.Writer, v any, t table) error {
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	if len(t.rows) == 0 {
		_, err := fmt.Fprintln(w, "No results")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.header, "\t"))
	for _, r := range t.rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}

func str(p *string) string {
	if p == nil {
		return "-"
	}
	return *p
}

func num(p *int64) string {
	if p == nil {
		return "-"
	}
	return strconv.FormatInt(*p, 10)
}

func flag(p *bool) string {
	if p == nil {
		return "-"
	}
	return strconv.FormatBool(*p)
}

func vehicleTable(v *models.ResolvedVehicle) table {
	return table{
		header: []string{"VEHICLE", "PLATE", "CHASSIS", "CUSTOMER", "IDENTIFIER", "PLAN"},
		rows: [][]string{{
			strconv.FormatInt(v.VehicleID, 10), v.Plate, v.Chassis, v.CustomerName,
			str(v.Identifier), str(v.PlanType),
		}},
	}
}

func faultTable(records []models.FaultRecord) table {
	t := table{header: []string{"TIME", "PLATE", "DTC", "FMI", "DESCRIPTION", "IDENTIFIER"}}
	for _, r := range records {
		t.rows = append(t.rows, []string{
			r.Timestamp.Format(timeLayout), r.Plate, r.DTC, num(r.FMI), str(r.DTCDescription), r.Identifier,
		})
	}
	return t
}

func telemetryTable(points []models.TelemetryPoint) table {
	t := table{header: []string{"TIME", "PLATE", "DTC", "SPN", "FMI", "STATUS"}}
	for _, p := range points {
		t.rows = append(t.rows, []string{
			p.Time.Format(timeLayout), p.Plate, p.DTC, num(p.SPN), num(p.FMI), str(p.Status),
		})
	}
	return t
}

func summaryTable(results []models.ClassificationResult) table {
	t := table{header: []string{"PLATE", "CUSTOMER", "DTC", "FMI", "EVENTS", "24H", "7D", "DAYS", "LAST SEEN", "STATUS", "PLAN"}}
	for _, r := range results {
		t.rows = append(t.rows, []string{
			r.Plate, r.CustomerName, r.DTC, num(r.FMI),
			strconv.Itoa(r.EventsTotal), strconv.Itoa(r.CountLast24h), strconv.Itoa(r.CountLast7d),
			strconv.Itoa(r.DaysWithEvents), r.LastSeen.Format(timeLayout), r.StatusLabel, flag(r.PlanActive),
		})
	}
	return t
}

func overviewTable(items []models.OverviewItem) table {
	t := table{header: []string{"CUSTOMER", "CHASSIS", "PLATE", "EVENTS", "MOST RECENT"}}
	for _, it := range items {
		t.rows = append(t.rows, []string{
			it.CustomerName, it.ChassisLast8, it.Plate, strconv.Itoa(it.DTCCount), it.MostRecent.Format(timeLayout),
		})
	}
	return t
}

func kbTable(e kb.Entry) table {
	return table{
		header: []string{"TITLE", "SEVERITY", "CAN RUN", "SOP"},
		rows:   [][]string{{e.Title, e.Severity, strconv.FormatBool(e.CanRun), strings.Join(e.SOP, "; ")}},
	}
}
