package porter

import (
	"encoding/json"
	"time"
)

// ValidationReport is the outcome of a structural export file check. It is
// usable without importing: the summary shows what the file holds.
type ValidationReport struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`

	PageCount     int       `json:"pageCount"`
	WorkspaceName string    `json:"workspaceName,omitempty"`
	ExportedAt    time.Time `json:"exportedAt,omitzero"`
}

// ValidateExportFile checks the structural shape of an export document.
// Errors accumulate instead of failing fast so the caller can show every
// problem at once.
func ValidateExportFile(data []byte) *ValidationReport {
	report := &ValidationReport{}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		report.Errors = append(report.Errors, "invalid JSON: "+err.Error())
		return report
	}

	if v, ok := raw["formatVersion"]; !ok {
		report.Errors = append(report.Errors, "missing formatVersion")
	} else if _, ok := v.(float64); !ok {
		report.Errors = append(report.Errors, "formatVersion must be a number")
	}

	ws, ok := raw["workspace"].(map[string]any)
	if !ok {
		report.Errors = append(report.Errors, "missing workspace object")
	} else if name, ok := ws["name"].(string); !ok {
		report.Errors = append(report.Errors, "workspace.name must be a string")
	} else {
		report.WorkspaceName = name
	}

	if pages, ok := raw["pages"].([]any); !ok {
		report.Errors = append(report.Errors, "pages must be a list")
	} else {
		report.PageCount = len(pages)
	}

	if s, ok := raw["exportedAt"].(string); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			report.ExportedAt = t
		}
	}

	report.Valid = len(report.Errors) == 0
	return report
}
