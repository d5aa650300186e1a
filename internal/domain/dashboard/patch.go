package dashboard

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/erp/gestao/internal/domain/shared"
)

// PatchOp names an incremental change to a document
type PatchOp string

const (
	OpUpdateWidgetAttrs PatchOp = "update-widget-attrs"
	OpInsertWidgetAfter PatchOp = "insert-widget-after"
	OpRemoveWidget      PatchOp = "remove-widget"
	OpAppendWidget      PatchOp = "append-widget"
	OpUpdateGrid        PatchOp = "update-grid"
)

// Patch is one operation. Which fields apply depends on Op:
//   - update-widget-attrs: WidgetID, Attrs
//   - insert-widget-after: AfterID, Widget
//   - remove-widget: WidgetID
//   - append-widget: Widget, optional ParentID (a container)
//   - update-grid: GridConfig
type Patch struct {
	Op         PatchOp        `json:"op"`
	WidgetID   string         `json:"widgetId,omitempty"`
	AfterID    string         `json:"afterId,omitempty"`
	ParentID   string         `json:"parentId,omitempty"`
	Attrs      map[string]any `json:"attrs,omitempty"`
	Widget     *Widget        `json:"widget,omitempty"`
	GridConfig *GridConfig    `json:"gridConfig,omitempty"`
}

var (
	ErrUnknownPatchOp = errors.New("operação de patch desconhecida")
	ErrWidgetNotFound = errors.New("widget não encontrado")
	ErrMissingWidget  = errors.New("widget ausente no patch")
	ErrImmutableID    = errors.New("o id do widget não pode ser alterado")
	ErrUnknownAttr    = errors.New("atributo desconhecido")
	ErrNotContainer   = errors.New("o widget pai não aceita filhos")
)

// PatchError reports the operation of a batch that failed
type PatchError struct {
	Index int
	Op    PatchOp
	Err   error
}

// Error implements the error interface
func (e *PatchError) Error() string {
	return fmt.Sprintf("patch %d (%s): %v", e.Index, e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *PatchError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, shared.ErrInvalidInput) match
func (e *PatchError) Is(target error) bool {
	return target == shared.ErrInvalidInput
}

// patchableAttrs are the widget attributes update-widget-attrs may replace
var patchableAttrs = map[string]bool{
	"type": true, "title": true, "position": true, "dataSource": true, "valuePath": true,
	"format": true, "styling": true, "options": true, "children": true,
}

// ApplyPatches applies the batch in order to a copy of doc, then normalizes and validates
// the result. Either every operation applies or doc is returned unchanged with an error.
func ApplyPatches(doc *Document, patches []Patch) (*Document, error) {
	out := doc.Clone()
	for i, p := range patches {
		if err := applyPatch(out, p); err != nil {
			return doc, &PatchError{Index: i, Op: p.Op, Err: err}
		}
	}
	Normalize(out)
	if err := Validate(out); err != nil {
		return doc, err
	}
	return out, nil
}

func applyPatch(doc *Document, p Patch) error {
	switch p.Op {
	case OpUpdateWidgetAttrs:
		w, ok := doc.Find(p.WidgetID)
		if !ok {
			return fmt.Errorf("%w: %q", ErrWidgetNotFound, p.WidgetID)
		}
		updated, err := withAttrs(*w, p.Attrs)
		if err != nil {
			return err
		}
		*w = updated
		return nil

	case OpInsertWidgetAfter:
		if p.Widget == nil {
			return ErrMissingWidget
		}
		list, idx, ok := siblings(&doc.Widgets, p.AfterID)
		if !ok {
			return fmt.Errorf("%w: %q", ErrWidgetNotFound, p.AfterID)
		}
		*list = insertAt(*list, idx+1, p.Widget.Clone())
		return nil

	case OpRemoveWidget:
		list, idx, ok := siblings(&doc.Widgets, p.WidgetID)
		if !ok {
			return fmt.Errorf("%w: %q", ErrWidgetNotFound, p.WidgetID)
		}
		*list = append((*list)[:idx:idx], (*list)[idx+1:]...)
		return nil

	case OpAppendWidget:
		if p.Widget == nil {
			return ErrMissingWidget
		}
		if p.ParentID == "" {
			doc.Widgets = append(doc.Widgets, p.Widget.Clone())
			return nil
		}
		parent, ok := doc.Find(p.ParentID)
		if !ok {
			return fmt.Errorf("%w: %q", ErrWidgetNotFound, p.ParentID)
		}
		if spec, known := components[canonicalType(parent.Type)]; !known || !spec.AllowsChildren {
			return fmt.Errorf("%w: %q", ErrNotContainer, p.ParentID)
		}
		parent.Children = append(parent.Children, p.Widget.Clone())
		return nil

	case OpUpdateGrid:
		if p.GridConfig == nil {
			return errors.New("gridConfig ausente no patch")
		}
		doc.GridConfig = *p.GridConfig
		if p.GridConfig.Gap != nil {
			doc.GridConfig.Gap = IntPtr(*p.GridConfig.Gap)
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownPatchOp, p.Op)
}

// withAttrs replaces whole top-level attributes of w. A null value clears the attribute.
func withAttrs(w Widget, attrs map[string]any) (Widget, error) {
	if len(attrs) == 0 {
		return w, errors.New("nenhum atributo informado")
	}

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	encoded, err := json.Marshal(w)
	if err != nil {
		return w, err
	}
	var fields map[string]any
	if err := json.Unmarshal(encoded, &fields); err != nil {
		return w, err
	}

	for _, k := range keys {
		v := attrs[k]
		if k == "id" {
			if s, ok := v.(string); ok && s == w.ID {
				continue
			}
			return w, ErrImmutableID
		}
		if !patchableAttrs[k] {
			return w, fmt.Errorf("%w: %q", ErrUnknownAttr, k)
		}
		if v == nil {
			delete(fields, k)
			continue
		}
		fields[k] = v
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return w, err
	}
	dec := json.NewDecoder(bytes.NewReader(merged))
	dec.DisallowUnknownFields()
	var out Widget
	if err := dec.Decode(&out); err != nil {
		return w, fmt.Errorf("atributos inválidos: %w", err)
	}
	return out, nil
}

// siblings finds the slice holding the widget with the given id and its index in it
func siblings(list *[]Widget, id string) (*[]Widget, int, bool) {
	for i := range *list {
		if (*list)[i].ID == id {
			return list, i, true
		}
		if l, idx, ok := siblings(&(*list)[i].Children, id); ok {
			return l, idx, true
		}
	}
	return nil, 0, false
}

func insertAt(ws []Widget, i int, w Widget) []Widget {
	ws = append(ws, Widget{})
	copy(ws[i+1:], ws[i:])
	ws[i] = w
	return ws
}
