package markerexpr

import "taut/internal/model"

// Matches evaluates expr against item's markers.
func Matches(expr Expr, item model.TestItem) bool {
	return expr.eval(func(key string) (model.Marker, bool) {
		return item.Marker(key)
	})
}
