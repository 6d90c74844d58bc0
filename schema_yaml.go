package docmap

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/docmap/internal/db"
)

// modelSpec is one entry of a model file.
type modelSpec struct {
	As        map[string]any `yaml:"as"`
	Fields    yaml.Node      `yaml:"fields"`
	Relations yaml.Node      `yaml:"relations"`
}

type fieldDef struct {
	Type     string `yaml:"type"`
	Default  any    `yaml:"default"`
	Required bool   `yaml:"required"`
	Index    any    `yaml:"index"`
}

type relationDef struct {
	Class   string `yaml:"class"`
	Local   string `yaml:"local"`
	Foreign string `yaml:"foreign"`
	Multi   bool   `yaml:"multi"`
}

// LoadSchemaFile reads a YAML model file.
func LoadSchemaFile(path string) ([]*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model file: %w", err)
	}
	defer f.Close()
	return LoadSchemas(f)
}

// LoadSchemas parses model declarations keyed by schema name. Schemas are
// returned ordered by name; fields keep their declaration order.
func LoadSchemas(r io.Reader) ([]*Schema, error) {
	var file map[string]modelSpec
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("parse model file: %w", err)
	}

	names := make([]string, 0, len(file))
	for name := range file {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*Schema, 0, len(names))
	for _, name := range names {
		s, err := buildSchema(name, file[name])
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func buildSchema(name string, spec modelSpec) (*Schema, error) {
	var opts []SchemaOption
	for flag := range spec.As {
		switch flag {
		case "timestampable":
			opts = append(opts, Timestamped())
		case "softdeletable":
			opts = append(opts, SoftDeletable())
		case "embedded":
			opts = append(opts, Embedded())
		default:
			return nil, fmt.Errorf("%w: %s: unknown option %q", ErrInvalidUsage, name, flag)
		}
	}

	err := eachEntry(&spec.Fields, func(field string, node *yaml.Node) error {
		var def fieldDef
		if err := node.Decode(&def); err != nil {
			return fmt.Errorf("%s.%s: %w", name, field, err)
		}
		t, err := ParseFieldType(def.Type)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", name, field, err)
		}
		var fopts []FieldOption
		if def.Required {
			fopts = append(fopts, Required())
		}
		if def.Default != nil {
			fopts = append(fopts, Default(def.Default))
		}
		if def.Index != nil {
			kind, ok := db.ParseIndexKind(def.Index)
			if !ok {
				return fmt.Errorf("%w: %s.%s: unknown index %v", ErrInvalidUsage, name, field, def.Index)
			}
			fopts = append(fopts, Indexed(kind))
		}
		opts = append(opts, Field(field, t, fopts...))
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachEntry(&spec.Relations, func(rel string, node *yaml.Node) error {
		var def relationDef
		if err := node.Decode(&def); err != nil {
			return fmt.Errorf("%s.%s: %w", name, rel, err)
		}
		if def.Multi {
			opts = append(opts, RelationMany(rel, def.Class, def.Local, def.Foreign))
		} else {
			opts = append(opts, Relation(rel, def.Class, def.Local, def.Foreign))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s := NewSchema(name, opts...)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// eachEntry walks a mapping node in document order.
func eachEntry(n *yaml.Node, fn func(key string, value *yaml.Node) error) error {
	switch {
	case n.Kind == 0, n.Kind == yaml.ScalarNode && n.Tag == "!!null":
		return nil
	case n.Kind == yaml.MappingNode:
	default:
		return fmt.Errorf("%w: expected a mapping at line %d", ErrInvalidUsage, n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if err := fn(n.Content[i].Value, n.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}
