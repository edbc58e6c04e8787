package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vicodes/process-flow-canvas-dream/pkg/models"
)

func TestExportCSV(t *testing.T) {
	tests := []struct {
		name    string
		records []Record
		want    string
	}{
		{
			name:    "empty input",
			records: nil,
			want:    "",
		},
		{
			name:    "value with a comma is quoted",
			records: []Record{{{Key: "a", Value: "1,2"}, {Key: "b", Value: "x"}}},
			want:    "a,b\n\"1,2\",x",
		},
		{
			name:    "nil renders empty",
			records: []Record{{{Key: "a", Value: nil}, {Key: "b", Value: (*time.Time)(nil)}}},
			want:    "a,b\n,",
		},
		{
			name:    "embedded quotes are not escaped",
			records: []Record{{{Key: "q", Value: `say "hi", bye`}}},
			want:    "q\n\"say \"hi\", bye\"",
		},
		{
			name: "header follows the first record and missing keys are empty",
			records: []Record{
				{{Key: "b", Value: 1}, {Key: "a", Value: true}},
				{{Key: "a", Value: false}},
			},
			want: "b,a\n1,true\n,false",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExportCSV(tt.records))
		})
	}
}

func TestInstanceRecords(t *testing.T) {
	start := time.Date(2025, 4, 20, 8, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	instances := []models.ProcessInstance{
		{ID: "inst-001", ProcessID: "proc-001", ProcessName: "Order Processing", ProcessVersion: "v1.0", Status: models.StatusActive, StartDate: start},
		{ID: "inst-002", ProcessID: "proc-003", ProcessName: "Shipping, Express", ProcessVersion: "v1.0", Status: models.StatusCompleted, StartDate: start, EndDate: &end},
	}

	got := ExportCSV(InstanceRecords(instances))
	want := "ID,ProcessName,Version,Status,StartDate,EndDate\n" +
		"inst-001,Order Processing,v1.0,active,2025-04-20T08:00:00Z,\n" +
		"inst-002,\"Shipping, Express\",v1.0,completed,2025-04-20T08:00:00Z,2025-04-20T09:00:00Z"
	assert.Equal(t, want, got)
}

func TestCSVFileName(t *testing.T) {
	assert.Equal(t, "process-instances-2025-04-20.csv", CSVFileName(time.Date(2025, 4, 20, 23, 0, 0, 0, time.UTC)))
}
