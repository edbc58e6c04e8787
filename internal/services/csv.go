package services

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/vicodes/process-flow-canvas-dream/pkg/models"
)

// Field is one key/value of a CSV record.
type Field struct {
	Key   string
	Value any
}

// Record is an ordered set of fields.
type Record []Field

func (r Record) get(key string) any {
	for _, f := range r {
		if f.Key == key {
			return f.Value
		}
	}
	return nil
}

// ExportCSV renders records with a header taken from the keys of the first record.
// Values containing a comma are wrapped in double quotes; embedded quotes are
// left as they are. Rows are joined with "\n" and no trailing newline is written.
func ExportCSV(records []Record) string {
	if len(records) == 0 {
		return ""
	}
	headers := make([]string, 0, len(records[0]))
	for _, f := range records[0] {
		headers = append(headers, f.Key)
	}

	lines := make([]string, 0, len(records)+1)
	lines = append(lines, strings.Join(headers, ","))
	for _, rec := range records {
		cells := make([]string, 0, len(headers))
		for _, h := range headers {
			s := csvValue(rec.get(h))
			if strings.Contains(s, ",") {
				s = `"` + s + `"`
			}
			cells = append(cells, s)
		}
		lines = append(lines, strings.Join(cells, ","))
	}
	return strings.Join(lines, "\n")
}

func csvValue(v any) string {
	if v == nil {
		return ""
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339)
	case *time.Time:
		return val.Format(time.RFC3339)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// InstanceRecords converts instances into the rows of the CSV download.
func InstanceRecords(instances []models.ProcessInstance) []Record {
	out := make([]Record, 0, len(instances))
	for _, inst := range instances {
		out = append(out, Record{
			{Key: "ID", Value: inst.ID},
			{Key: "ProcessName", Value: inst.ProcessName},
			{Key: "Version", Value: inst.ProcessVersion},
			{Key: "Status", Value: string(inst.Status)},
			{Key: "StartDate", Value: inst.StartDate},
			{Key: "EndDate", Value: inst.EndDate},
		})
	}
	return out
}

// CSVFileName returns the download name for an export made at t.
func CSVFileName(t time.Time) string {
	return "process-instances-" + t.Format("2006-01-02") + ".csv"
}
