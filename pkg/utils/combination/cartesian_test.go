package combination_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	combo "github.com/opst/netsec/pkg/utils/combination"
)

func TestMapCartesian(t *testing.T) {
	t.Run("generates Cartesian product along sorted keys, the last key varies fastest", func(t *testing.T) {
		when := map[string][]string{
			"top":    {"t-shirt", "blouse"},
			"head":   {"baseball cap", "straw hat"},
			"bottom": {"jeans", "skirt"},
		}

		expected := []map[string]string{
			// 2 x 2 x 2 = 8 patterns
			{"bottom": "jeans", "head": "baseball cap", "top": "t-shirt"},
			{"bottom": "jeans", "head": "baseball cap", "top": "blouse"},
			{"bottom": "jeans", "head": "straw hat", "top": "t-shirt"},
			{"bottom": "jeans", "head": "straw hat", "top": "blouse"},
			{"bottom": "skirt", "head": "baseball cap", "top": "t-shirt"},
			{"bottom": "skirt", "head": "baseball cap", "top": "blouse"},
			{"bottom": "skirt", "head": "straw hat", "top": "t-shirt"},
			{"bottom": "skirt", "head": "straw hat", "top": "blouse"},
		}

		actual := combo.MapCartesian(when)
		if diff := cmp.Diff(expected, actual); diff != "" {
			t.Errorf("unexpected product (-want +got):\n%s", diff)
		}
	})

	t.Run("generates one empty item for empty basis", func(t *testing.T) {
		actual := combo.MapCartesian(map[string][]int{})
		if diff := cmp.Diff([]map[string]int{{}}, actual); diff != "" {
			t.Errorf("unexpected product (-want +got):\n%s", diff)
		}
	})

	t.Run("generates nothing when a dimension is zero-width", func(t *testing.T) {
		actual := combo.MapCartesian(map[string][]int{"a": {1, 2}, "b": {}})
		if len(actual) != 0 {
			t.Errorf("unexpected product: %v", actual)
		}
	})
}
