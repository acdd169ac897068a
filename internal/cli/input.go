package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/softkave/fimidx-sub001/internal/ir"
	"github.com/softkave/fimidx-sub001/internal/queryir"
)

// readJSONFile decodes the JSON file at path into v.
func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// loadQuery reads a query document. An empty path is the empty query.
// A non-empty appID replaces the document's tenant.
func loadQuery(path, appID string) (queryir.Query, error) {
	var q queryir.Query
	if path != "" {
		if err := readJSONFile(path, &q); err != nil {
			return queryir.Query{}, err
		}
	}
	if appID != "" {
		q.AppID = appID
	}
	return q, nil
}

// loadSort reads a list of sort items. An empty path means the default
// order.
func loadSort(path string) ([]queryir.SortItem, error) {
	if path == "" {
		return nil, nil
	}
	var items []queryir.SortItem
	if err := readJSONFile(path, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// loadFields reads field metadata used to classify array paths.
func loadFields(path string) (queryir.FieldSet, error) {
	if path == "" {
		return nil, nil
	}
	var list []ir.ObjField
	if err := readJSONFile(path, &list); err != nil {
		return nil, err
	}
	return queryir.NewFieldSet(list), nil
}

// loadItems reads a JSON array of payload objects.
func loadItems(path string) ([]ir.IRObject, error) {
	var items []ir.IRObject
	if err := readJSONFile(path, &items); err != nil {
		return nil, err
	}
	return items, nil
}
