package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/erp/gestao/internal/domain/catalog"
	"github.com/erp/gestao/internal/domain/shared"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Issue is one problem found in a document
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ParseError lists every problem found while parsing or validating a document
type ParseError struct {
	Issues []Issue `json:"issues"`
}

func (e *ParseError) add(path, format string, args ...any) {
	e.Issues = append(e.Issues, Issue{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (e *ParseError) err() error {
	if len(e.Issues) == 0 {
		return nil
	}
	return e
}

// Error implements the error interface
func (e *ParseError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, i := range e.Issues {
		if i.Path == "" {
			parts = append(parts, i.Message)
			continue
		}
		parts = append(parts, i.Path+": "+i.Message)
	}
	return "dashboard inválido: " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, shared.ErrInvalidInput) match
func (e *ParseError) Is(target error) bool {
	return target == shared.ErrInvalidInput
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Parse decodes a JSON or YAML document, normalizes it and validates it.
// Unknown attributes are rejected.
func Parse(data []byte) (*Document, error) {
	doc, err := decode(data)
	if err != nil {
		return nil, err
	}
	Normalize(doc)
	if err := Validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func decode(data []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &ParseError{Issues: []Issue{{Message: "documento vazio"}}}
	}

	if trimmed[0] != '{' {
		var raw any
		if err := yaml.Unmarshal(trimmed, &raw); err != nil {
			return nil, &ParseError{Issues: []Issue{{Message: "YAML inválido: " + err.Error()}}}
		}
		if _, ok := raw.(map[string]any); !ok {
			return nil, &ParseError{Issues: []Issue{{Message: "o documento deve ser um objeto"}}}
		}
		converted, err := json.Marshal(raw)
		if err != nil {
			return nil, &ParseError{Issues: []Issue{{Message: "YAML não representável em JSON: " + err.Error()}}}
		}
		trimmed = converted
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, &ParseError{Issues: []Issue{{Message: "JSON inválido: " + err.Error()}}}
	}
	if dec.More() {
		return nil, &ParseError{Issues: []Issue{{Message: "conteúdo após o fim do documento"}}}
	}
	return &doc, nil
}

// Stringify encodes a document as canonical indented JSON
func Stringify(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// Normalize fills defaults in place: grid dimensions, canonical lowercase types, default
// sizes per type, widths clamped to the grid and generated ids for widgets without one.
func Normalize(doc *Document) {
	doc.Title = strings.TrimSpace(doc.Title)
	g := &doc.GridConfig
	if g.Columns == 0 {
		g.Columns = DefaultColumns
	}
	if g.RowHeight == 0 {
		g.RowHeight = DefaultRowHeight
	}
	if g.Gap == nil {
		g.Gap = IntPtr(DefaultGap)
	}
	g.Theme = strings.ToLower(strings.TrimSpace(g.Theme))
	if doc.Widgets == nil {
		doc.Widgets = []Widget{}
	}

	used := map[string]bool{}
	doc.Walk(func(w *Widget, _ *Widget) bool {
		w.ID = strings.TrimSpace(w.ID)
		if w.ID != "" {
			used[w.ID] = true
		}
		return true
	})

	counters := map[string]int{}
	doc.Walk(func(w *Widget, _ *Widget) bool {
		normalizeWidget(w, g.Columns)
		if w.ID == "" {
			prefix := w.Type
			if prefix == "" {
				prefix = "widget"
			}
			for {
				counters[prefix]++
				id := fmt.Sprintf("%s-%d", prefix, counters[prefix])
				if !used[id] {
					w.ID = id
					used[id] = true
					break
				}
			}
		}
		return true
	})
}

func normalizeWidget(w *Widget, columns int) {
	w.Type = canonicalType(w.Type)
	w.Format = strings.ToLower(strings.TrimSpace(w.Format))
	w.ValuePath = strings.TrimSpace(w.ValuePath)
	if spec, ok := components[w.Type]; ok {
		if w.Position.W == 0 {
			w.Position.W = spec.DefaultW
		}
		if w.Position.H == 0 {
			w.Position.H = spec.DefaultH
		}
	}
	if w.Position.W > columns {
		w.Position.W = columns
	}
	if q := queryOf(w); q != nil {
		q.Module = strings.ToLower(strings.TrimSpace(q.Module))
		q.Resource = strings.ToLower(strings.TrimSpace(q.Resource))
		q.Aggregation = strings.ToLower(q.Aggregation)
		q.OrderDir = strings.ToLower(q.OrderDir)
		if q.Aggregation == "" && q.Measure != "" {
			q.Aggregation = "sum"
		}
	}
	if len(w.Styling) == 0 {
		w.Styling = nil
	}
	if len(w.Options) == 0 {
		w.Options = nil
	}
	if len(w.Children) == 0 {
		w.Children = nil
	}
}

func queryOf(w *Widget) *Query {
	if w.DataSource == nil {
		return nil
	}
	return w.DataSource.Query
}

var widgetID = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,63}$`)

var formats = map[string]bool{"": true, "currency": true, "number": true, "percent": true, "date": true, "text": true}

// Validate checks a normalized document and returns a *ParseError listing every problem
func Validate(doc *Document) error {
	perr := &ParseError{}
	structIssues(perr, "", doc)

	seen := map[string]string{}
	validateWidgets(perr, doc.Widgets, "widgets", doc.GridConfig.Columns, seen)
	return perr.err()
}

func validateWidgets(perr *ParseError, ws []Widget, path string, columns int, seen map[string]string) {
	for i := range ws {
		w := &ws[i]
		p := fmt.Sprintf("%s[%d]", path, i)

		if w.ID == "" {
			perr.add(p+".id", "campo obrigatório")
		} else if !widgetID.MatchString(w.ID) {
			perr.add(p+".id", "use letras, números, '-' ou '_' começando por uma letra")
		} else if prev, dup := seen[w.ID]; dup {
			perr.add(p+".id", "id %q repetido (já usado em %s)", w.ID, prev)
		} else {
			seen[w.ID] = p
		}

		spec, known := components[w.Type]
		if !known {
			perr.add(p+".type", "tipo %q desconhecido (use %s)", w.Type, strings.Join(ComponentTypes(), ", "))
		}

		structIssues(perr, p+".position", &w.Position)
		if w.Position.X+w.Position.W > columns {
			perr.add(p+".position", "x+w (%d) excede as %d colunas da grade", w.Position.X+w.Position.W, columns)
		}
		if !formats[w.Format] {
			perr.add(p+".format", "formato %q inválido", w.Format)
		}
		if w.ValuePath != "" {
			if _, ok := splitPath(w.ValuePath); !ok {
				perr.add(p+".valuePath", "caminho inválido")
			}
		}

		validateDataSource(perr, w, p, known && spec.NeedsData)

		if len(w.Children) > 0 {
			if known && !spec.AllowsChildren {
				perr.add(p+".children", "o tipo %q não aceita filhos", w.Type)
			}
			validateWidgets(perr, w.Children, p+".children", columns, seen)
		}
	}
}

func validateDataSource(perr *ParseError, w *Widget, p string, needsData bool) {
	ds := w.DataSource
	if ds == nil {
		if needsData {
			perr.add(p+".dataSource", "o tipo %q exige uma fonte de dados", w.Type)
		}
		return
	}

	set := 0
	if ds.Ref != "" {
		set++
	}
	if ds.Query != nil {
		set++
	}
	if ds.Static != nil {
		set++
	}
	if set != 1 {
		perr.add(p+".dataSource", "informe exatamente um entre ref, query e static")
		return
	}

	if q := ds.Query; q != nil {
		qp := p + ".dataSource.query"
		structIssues(perr, qp, q)
		for _, f := range [][2]string{{"module", q.Module}, {"resource", q.Resource}, {"measure", q.Measure}, {"dimension", q.Dimension}} {
			if f[1] != "" && !catalog.IsIdentifier(f[1]) {
				perr.add(qp+"."+f[0], "identificador inválido")
			}
		}
		for _, c := range q.Columns {
			if !catalog.IsIdentifier(c) {
				perr.add(qp+".columns", "coluna %q inválida", c)
			}
		}
		if q.Aggregation != "" && q.Aggregation != "count" && q.Measure == "" {
			perr.add(qp+".measure", "campo obrigatório para %s", q.Aggregation)
		}
	}
}

// structIssues runs the validator tags of v and records failures under path
func structIssues(perr *ParseError, path string, v any) {
	err := validate.Struct(v)
	if err == nil {
		return
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		perr.add(path, "%v", err)
		return
	}
	for _, fe := range verrs {
		// namespace starts with the struct type name
		p := fe.Namespace()
		if i := strings.IndexByte(p, '.'); i >= 0 {
			p = p[i+1:]
		}
		if path != "" {
			p = path + "." + p
		}
		perr.add(p, "%s", ruleMessage(fe))
	}
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "campo obrigatório"
	case "gte", "min":
		return "deve ser maior ou igual a " + fe.Param()
	case "lte", "max":
		if fe.Kind() == reflect.String {
			return "deve ter no máximo " + fe.Param() + " caracteres"
		}
		return "deve ser menor ou igual a " + fe.Param()
	case "oneof":
		return "deve ser um entre: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	}
	return "falha na regra " + fe.Tag()
}
