package porter

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/potionhq/potion/internal/entity"
)

// ExportSchema returns the JSON Schema of the export file format, for
// external tools that validate or generate export documents.
func ExportSchema() ([]byte, error) {
	r := &jsonschema.Reflector{ExpandedStruct: true}
	schema := r.Reflect(&entity.WorkspaceExport{})
	schema.Title = "Potion workspace export"
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding schema: %w", err)
	}
	return append(data, '\n'), nil
}
