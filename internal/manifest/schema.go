package manifest

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Common errors.
var (
	ErrParse    = errors.New("manifest: malformed document")
	ErrNotFound = errors.New("manifest: not found")
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBase = "https://gridcore.invalid/schemas/"

var (
	schemasOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	schemasErr  error
)

// compileSchemas compiles the embedded schemas once per process.
func compileSchemas() (map[string]*jsonschema.Schema, error) {
	schemasOnce.Do(func() {
		names := []string{"catalogue.json", "release.json", "asset_index.json"}

		c := jsonschema.NewCompiler()
		for _, name := range names {
			raw, err := schemaFS.ReadFile("schemas/" + name)
			if err != nil {
				schemasErr = fmt.Errorf("read schema %s: %w", name, err)
				return
			}
			doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
			if err != nil {
				schemasErr = fmt.Errorf("decode schema %s: %w", name, err)
				return
			}
			if err := c.AddResource(schemaBase+name, doc); err != nil {
				schemasErr = fmt.Errorf("add schema %s: %w", name, err)
				return
			}
		}

		compiled := make(map[string]*jsonschema.Schema, len(names))
		for _, name := range names {
			sch, err := c.Compile(schemaBase + name)
			if err != nil {
				schemasErr = fmt.Errorf("compile schema %s: %w", name, err)
				return
			}
			compiled[name] = sch
		}
		schemas = compiled
	})
	return schemas, schemasErr
}

// decode validates data against the named schema and unmarshals it into v.
func decode(schema string, data []byte, v any) error {
	compiled, err := compileSchemas()
	if err != nil {
		return err
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	if err := compiled[schema].Validate(inst); err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	return nil
}

// ParseCatalogue decodes a release catalogue document.
func ParseCatalogue(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := decode("catalogue.json", data, &c); err != nil {
		return nil, fmt.Errorf("catalogue: %w", err)
	}
	return &c, nil
}

// ParseRelease decodes a release metadata document.
func ParseRelease(data []byte) (*Release, error) {
	var r Release
	if err := decode("release.json", data, &r); err != nil {
		return nil, fmt.Errorf("release metadata: %w", err)
	}
	return &r, nil
}

// ParseAssetIndex decodes an asset index document.
func ParseAssetIndex(data []byte) (*AssetIndex, error) {
	var a AssetIndex
	if err := decode("asset_index.json", data, &a); err != nil {
		return nil, fmt.Errorf("asset index: %w", err)
	}
	return &a, nil
}
