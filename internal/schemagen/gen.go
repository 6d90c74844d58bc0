// Package schemagen renders model-file schemas as Go declarations, so a
// program can register them without reading YAML at startup.
package schemagen

import (
	"bytes"
	"fmt"
	"go/format"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"unicode"

	"github.com/kailas-cloud/docmap"
)

// Options controls the generated file.
type Options struct {
	Package string
	// Source is mentioned in the header comment, typically the model file path.
	Source string
}

type fieldView struct {
	Name  string
	Const string
}

type schemaView struct {
	Name    string
	Options []string
	Fields  []fieldView
}

var fileTemplate = template.Must(template.New("schemas").Parse(`// Code generated by docmap gen{{if .Source}} from {{.Source}}{{end}}. DO NOT EDIT.

package {{.Package}}

import "github.com/kailas-cloud/docmap"

// Schemas returns the declared schemas sorted by name.
func Schemas() []*docmap.Schema {
	return []*docmap.Schema{
{{- range .Schemas}}
		docmap.NewSchema({{printf "%q" .Name}},
{{- range .Options}}
			{{.}},
{{- end}}
		),
{{- end}}
	}
}
{{range .Schemas}}{{if .Fields}}
// {{.Name}} field names.
const (
{{- range .Fields}}
	{{.Const}} = {{printf "%q" .Name}}
{{- end}}
)
{{end}}{{end}}`))

// Generate renders schemas as a gofmt-ed Go file.
func Generate(schemas []*docmap.Schema, opts Options) ([]byte, error) {
	if opts.Package == "" {
		opts.Package = "models"
	}
	sorted := append([]*docmap.Schema(nil), schemas...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	views := make([]schemaView, 0, len(sorted))
	for _, s := range sorted {
		v, err := viewOf(s)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}

	var buf bytes.Buffer
	err := fileTemplate.Execute(&buf, map[string]any{
		"Package": opts.Package,
		"Source":  opts.Source,
		"Schemas": views,
	})
	if err != nil {
		return nil, fmt.Errorf("render schemas: %w", err)
	}
	out, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format generated code: %w", err)
	}
	return out, nil
}

func viewOf(s *docmap.Schema) (schemaView, error) {
	v := schemaView{Name: s.Name}
	if s.Embedded {
		v.Options = append(v.Options, "docmap.Embedded()")
	}
	if s.Timestamped {
		v.Options = append(v.Options, "docmap.Timestamped()")
	}
	if s.SoftDeletable {
		v.Options = append(v.Options, "docmap.SoftDeletable()")
	}
	for _, f := range s.Fields {
		v.Fields = append(v.Fields, fieldView{Name: f.Name, Const: s.Name + exported(f.Name)})
		if implicit(s, f) {
			continue
		}
		expr, err := fieldExpr(f)
		if err != nil {
			return schemaView{}, fmt.Errorf("%s.%s: %w", s.Name, f.Name, err)
		}
		v.Options = append(v.Options, expr)
	}
	for _, r := range s.Relations {
		ctor := "docmap.Relation"
		if r.Many {
			ctor = "docmap.RelationMany"
		}
		v.Options = append(v.Options, fmt.Sprintf("%s(%q, %q, %q, %q)", ctor, r.Name, r.Class, r.Local, r.Foreign))
	}
	return v, nil
}

// implicit reports whether NewSchema adds f by itself.
func implicit(s *docmap.Schema, f docmap.FieldSpec) bool {
	if f.Required || f.Default != nil || f.Index != "" {
		return false
	}
	switch f.Name {
	case docmap.FieldID:
		return !s.Embedded && f.Type.Kind == docmap.FieldAny
	case docmap.FieldCreated, docmap.FieldUpdated:
		return s.Timestamped && f.Type.Kind == docmap.FieldInt
	case docmap.FieldDeleted:
		return s.SoftDeletable && f.Type.Kind == docmap.FieldInt
	}
	return false
}

func fieldExpr(f docmap.FieldSpec) (string, error) {
	args := []string{strconv.Quote(f.Name), typeExpr(f.Type)}
	if f.Required {
		args = append(args, "docmap.Required()")
	}
	if f.Default != nil {
		lit, err := literal(f.Default)
		if err != nil {
			return "", err
		}
		args = append(args, "docmap.Default("+lit+")")
	}
	switch f.Index {
	case "":
	case docmap.IndexAscending:
		args = append(args, "docmap.Indexed(docmap.IndexAscending)")
	case docmap.IndexDescending:
		args = append(args, "docmap.Indexed(docmap.IndexDescending)")
	case docmap.IndexGeo2D:
		args = append(args, "docmap.Indexed(docmap.IndexGeo2D)")
	default:
		return "", fmt.Errorf("unknown index kind %q", f.Index)
	}
	return "docmap.Field(" + strings.Join(args, ", ") + ")", nil
}

func typeExpr(t docmap.FieldType) string {
	switch t.Kind {
	case docmap.FieldBool:
		return "docmap.BoolType"
	case docmap.FieldInt:
		return "docmap.IntType"
	case docmap.FieldFloat:
		return "docmap.FloatType"
	case docmap.FieldString:
		return "docmap.StringType"
	case docmap.FieldMap:
		return "docmap.MapType"
	case docmap.FieldObject:
		return "docmap.ObjectOf(" + strconv.Quote(t.Class) + ")"
	case docmap.FieldList:
		if t.Elem == nil {
			return "docmap.ListType"
		}
		return "docmap.ListOf(" + typeExpr(*t.Elem) + ")"
	}
	return "docmap.AnyType"
}

// literal renders a model-file default as a Go expression.
func literal(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return strconv.Quote(t), nil
	case bool:
		return strconv.FormatBool(t), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	case []any:
		items := make([]string, len(t))
		for i, item := range t {
			lit, err := literal(item)
			if err != nil {
				return "", err
			}
			items[i] = lit
		}
		return "[]any{" + strings.Join(items, ", ") + "}", nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		items := make([]string, len(keys))
		for i, k := range keys {
			lit, err := literal(t[k])
			if err != nil {
				return "", err
			}
			items[i] = strconv.Quote(k) + ": " + lit
		}
		return "docmap.M{" + strings.Join(items, ", ") + "}", nil
	}
	return "", fmt.Errorf("unsupported default %T", v)
}

// exported turns snake_case into an exported Go identifier.
func exported(name string) string {
	var b strings.Builder
	for _, part := range strings.Split(name, "_") {
		if part == "" {
			continue
		}
		if part == "id" {
			b.WriteString("ID")
			continue
		}
		r := []rune(part)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}
