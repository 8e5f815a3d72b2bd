package discovery

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"taut/internal/model"
)

// decoratorInfo is the normalized shape of one parsed decorator, before it is
// folded into a TestItem's marker set.
type decoratorInfo struct {
	name     string
	args     []string          // positional argument literals, in order
	kwargs   map[string]string // keyword argument literals
	isSet    map[string]bool   // kwargs whose value was a list/set literal
	setVals  map[string][]string
}

// reserved decorator names with dedicated marker semantics. Anything else is
// recorded as opaque and otherwise ignored (spec §4.1 "Opaque decorators").
const (
	decoratorSkip     = "skip"
	decoratorMark     = "mark"
	decoratorParallel = "parallel"
)

// extractMarkers walks a decorated_definition's decorator children, in
// source order (top to bottom), and folds them into a marker set. For a
// given key, a later decorator (closer to the definition) overwrites an
// earlier one's scalar value; set-valued markers union across decorators
// instead of overwriting.
func extractMarkers(decoratorNodes []*sitter.Node, src []byte) ([]model.Marker, []string, error) {
	byKey := make(map[string]model.Marker)
	var order []string
	var opaque []string

	for _, dn := range decoratorNodes {
		info, err := parseDecorator(dn, src)
		if err != nil {
			return nil, nil, err
		}

		switch info.name {
		case decoratorSkip:
			reason := ""
			if len(info.args) > 0 {
				reason = info.args[0]
			}
			if v, ok := info.kwargs["reason"]; ok {
				reason = v
			}
			upsertScalar(byKey, &order, model.MarkerKeySkip, reason)

		case decoratorParallel:
			upsertPresence(byKey, &order, model.MarkerKeyParallel)

		case decoratorMark:
			if len(info.kwargs) == 0 && len(info.setVals) == 0 && len(info.args) > 0 {
				// bare @mark("slow") form: presence marker named by the literal.
				upsertPresence(byKey, &order, info.args[0])
				continue
			}
			kwargKeys := make([]string, 0, len(info.kwargs)+len(info.setVals))
			for k := range info.kwargs {
				kwargKeys = append(kwargKeys, k)
			}
			for k := range info.setVals {
				kwargKeys = append(kwargKeys, k)
			}
			sort.Strings(kwargKeys)
			for _, k := range kwargKeys {
				if info.isSet[k] {
					upsertSet(byKey, &order, k, info.setVals[k])
				} else {
					upsertScalar(byKey, &order, k, info.kwargs[k])
				}
			}

		default:
			opaque = append(opaque, info.name)
		}
	}

	markers := make([]model.Marker, 0, len(order))
	for _, k := range order {
		markers = append(markers, byKey[k])
	}
	return markers, opaque, nil
}

func upsertScalar(byKey map[string]model.Marker, order *[]string, key, value string) {
	if _, exists := byKey[key]; !exists {
		*order = append(*order, key)
	}
	byKey[key] = model.Marker{Key: key, Kind: model.MarkerScalar, Scalar: value}
}

func upsertPresence(byKey map[string]model.Marker, order *[]string, key string) {
	if _, exists := byKey[key]; !exists {
		*order = append(*order, key)
	}
	byKey[key] = model.Marker{Key: key, Kind: model.MarkerPresence}
}

func upsertSet(byKey map[string]model.Marker, order *[]string, key string, values []string) {
	existing, ok := byKey[key]
	if !ok {
		*order = append(*order, key)
		byKey[key] = model.Marker{Key: key, Kind: model.MarkerSet, Set: append([]string(nil), values...)}
		return
	}
	merged := existing.Set
	for _, v := range values {
		if !contains(merged, v) {
			merged = append(merged, v)
		}
	}
	existing.Set = merged
	byKey[key] = existing
}

func contains(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}

// parseDecorator interprets one decorator node's expression: a bare
// identifier ("@parallel"), a call ("@mark(k=v)", "@skip(\"reason\")"), or a
// dotted attribute ("@pytest.mark.slow"), which is always opaque since this
// core only recognizes its own three bare decorator names.
func parseDecorator(dn *sitter.Node, src []byte) (decoratorInfo, error) {
	// decorator node shape: "@" followed by the decorated expression.
	expr := dn.NamedChild(0)
	if expr == nil {
		return decoratorInfo{}, fmt.Errorf("empty decorator at line %d", dn.StartPoint().Row+1)
	}
	return parseDecoratorExpr(expr, src)
}

func parseDecoratorExpr(expr *sitter.Node, src []byte) (decoratorInfo, error) {
	switch expr.Type() {
	case "identifier":
		return decoratorInfo{name: expr.Content(src)}, nil

	case "attribute":
		return decoratorInfo{name: expr.Content(src)}, nil

	case "call":
		fn := expr.ChildByFieldName("function")
		if fn == nil {
			return decoratorInfo{}, fmt.Errorf("decorator call missing function at line %d", expr.StartPoint().Row+1)
		}
		name := fn.Content(src)
		info := decoratorInfo{
			name:    name,
			kwargs:  make(map[string]string),
			isSet:   make(map[string]bool),
			setVals: make(map[string][]string),
		}
		args := expr.ChildByFieldName("arguments")
		if args == nil {
			return info, nil
		}
		for i := 0; i < int(args.NamedChildCount()); i++ {
			a := args.NamedChild(i)
			switch a.Type() {
			case "keyword_argument":
				k := a.ChildByFieldName("name").Content(src)
				v := a.ChildByFieldName("value")
				if isSetLiteral(v) {
					info.isSet[k] = true
					info.setVals[k] = literalSetValues(v, src)
				} else {
					info.kwargs[k] = literalScalarValue(v, src)
				}
			default:
				info.args = append(info.args, literalScalarValue(a, src))
			}
		}
		return info, nil

	default:
		return decoratorInfo{name: expr.Content(src)}, nil
	}
}

func isSetLiteral(n *sitter.Node) bool {
	switch n.Type() {
	case "set", "list", "tuple":
		return true
	}
	return false
}

func literalSetValues(n *sitter.Node, src []byte) []string {
	var out []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		out = append(out, literalScalarValue(n.NamedChild(i), src))
	}
	return out
}

// literalScalarValue renders a literal node's value as a plain string,
// stripping quotes from string literals. Non-literal expressions (variable
// references, f-strings) are rendered as their raw source text; the marker
// filter only needs a stable comparison string, not a typed value.
func literalScalarValue(n *sitter.Node, src []byte) string {
	text := n.Content(src)
	switch n.Type() {
	case "string":
		return unquote(text)
	case "true":
		return "true"
	case "false":
		return "false"
	case "integer", "float":
		if _, err := strconv.ParseFloat(text, 64); err == nil {
			return text
		}
		return text
	}
	return text
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range []string{`"""`, "'''"} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'') && first == last {
			return s[1 : len(s)-1]
		}
	}
	return s
}
