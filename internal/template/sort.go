package template

import (
	"sort"

	"github.com/edvin/paas/internal/model"
)

// SortByDependency returns specs with databases first. The original order
// is kept within each group.
func SortByDependency(specs []model.ServiceSpec) []model.ServiceSpec {
	out := append([]model.ServiceSpec(nil), specs...)
	sort.SliceStable(out, func(i, j int) bool {
		return rank(out[i].Type) < rank(out[j].Type)
	})
	return out
}

func rank(t model.ServiceType) int {
	if t == model.ServiceTypeDatabase {
		return 0
	}
	return 1
}
