package app

import (
	"encoding/csv"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ExecSnapshotProvider enumerates processes and services through the
// management instrumentation CLI, which reports full image paths that
// tasklist omits.
type ExecSnapshotProvider struct{}

// NewExecSnapshotProvider creates the production snapshot provider.
func NewExecSnapshotProvider() *ExecSnapshotProvider {
	return &ExecSnapshotProvider{}
}

// Snapshot enumerates running processes and installed services.
func (p *ExecSnapshotProvider) Snapshot() (*Snapshot, error) {
	procOut, err := exec.Command("wmic", "process", "get", "ProcessId,Name,ExecutablePath", "/format:csv").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate processes: %w", err)
	}
	svcOut, err := exec.Command("wmic", "service", "get", "Name,DisplayName,PathName,State", "/format:csv").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate services: %w", err)
	}

	return &Snapshot{
		Processes: parseProcessCSV(string(procOut)),
		Services:  parseServiceCSV(string(svcOut)),
	}, nil
}

// parseProcessCSV reads wmic process CSV output. Columns come out
// alphabetically: Node, ExecutablePath, Name, ProcessId. Malformed rows
// are skipped; a partial snapshot beats none.
func parseProcessCSV(out string) []ProcessRecord {
	var records []ProcessRecord
	for _, row := range csvRows(out) {
		if len(row) < 4 || row[3] == "ProcessId" {
			continue
		}
		pid, err := strconv.Atoi(row[3])
		if err != nil || pid <= 0 {
			continue
		}
		records = append(records, ProcessRecord{
			PID:  pid,
			Name: row[2],
			Path: row[1],
		})
	}
	return records
}

// parseServiceCSV reads wmic service CSV output. Columns come out
// alphabetically: Node, DisplayName, Name, PathName, State.
func parseServiceCSV(out string) []ServiceRecord {
	var records []ServiceRecord
	for _, row := range csvRows(out) {
		if len(row) < 5 || row[2] == "Name" || row[2] == "" {
			continue
		}
		records = append(records, ServiceRecord{
			Name:        row[2],
			DisplayName: row[1],
			BinaryPath:  serviceBinary(row[3]),
			State:       row[4],
		})
	}
	return records
}

// csvRows splits wmic output into CSV rows, dropping blank lines and the
// byte-order mark wmic prepends.
func csvRows(out string) [][]string {
	out = strings.TrimPrefix(out, "\ufeff")
	var rows [][]string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		row, err := csv.NewReader(strings.NewReader(line)).Read()
		if err != nil {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// serviceBinary extracts the executable path from a service command line,
// which may be quoted and may carry arguments.
func serviceBinary(commandLine string) string {
	s := strings.TrimSpace(commandLine)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, `"`) {
		if end := strings.Index(s[1:], `"`); end >= 0 {
			return s[1 : end+1]
		}
		return strings.Trim(s, `"`)
	}
	// Unquoted: arguments start after the extension, e.g. ".exe -k".
	if idx := strings.Index(strings.ToLower(s), ".exe "); idx >= 0 {
		return s[:idx+4]
	}
	return s
}
