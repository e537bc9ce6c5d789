package service

import (
	"context"
	"fmt"

	"github.com/sangkips/coopmart-api/internal/domain/entity"
	"github.com/sangkips/coopmart-api/internal/domain/repository"
	"github.com/sangkips/coopmart-api/pkg/apperror"
	"github.com/sangkips/coopmart-api/pkg/utils"
)

// lookup is a read-through map from a normalized natural key to a stored row.
// It batch-loads on first miss and remembers misses so each key hits the store once.
type lookup[V any] struct {
	normalize func(string) string
	load      func(ctx context.Context, keys []string) ([]V, error)
	keyOf     func(v *V) string
	cache     map[string]*V
}

func newLookup[V any](normalize func(string) string, load func(context.Context, []string) ([]V, error), keyOf func(*V) string) *lookup[V] {
	return &lookup[V]{normalize: normalize, load: load, keyOf: keyOf, cache: make(map[string]*V)}
}

// prime loads every key not seen yet in a single call
func (l *lookup[V]) prime(ctx context.Context, keys []string) error {
	var pending []string
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		nk := l.normalize(k)
		if nk == "" || seen[nk] {
			continue
		}
		seen[nk] = true
		if _, known := l.cache[nk]; !known {
			pending = append(pending, nk)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	found, err := l.load(ctx, pending)
	if err != nil {
		return err
	}
	for _, k := range pending {
		l.cache[k] = nil
	}
	for i := range found {
		v := found[i]
		l.cache[l.normalize(l.keyOf(&v))] = &v
	}
	return nil
}

// get returns the row for key, loading it when it has not been seen
func (l *lookup[V]) get(ctx context.Context, key string) (*V, error) {
	nk := l.normalize(key)
	if nk == "" {
		return nil, nil
	}
	if v, known := l.cache[nk]; known {
		return v, nil
	}
	if err := l.prime(ctx, []string{nk}); err != nil {
		return nil, err
	}
	return l.cache[nk], nil
}

// forget drops cached misses so newly created rows can be found
func (l *lookup[V]) forget(keys ...string) {
	for _, k := range keys {
		delete(l.cache, l.normalize(k))
	}
}

func branchLookup(repo repository.CatalogRepository) *lookup[entity.Branch] {
	return newLookup(utils.NormalizeCode, repo.FindBranches, func(b *entity.Branch) string { return b.Code })
}

func itemLookup(repo repository.CatalogRepository) *lookup[entity.Item] {
	return newLookup(utils.NormalizeCode, repo.FindItems, func(i *entity.Item) string { return i.SKU })
}

func departmentLookup(repo repository.CatalogRepository) *lookup[entity.Department] {
	return newLookup(utils.NormalizeName, repo.FindDepartments, func(d *entity.Department) string { return d.Name })
}

func requireBranch(ctx context.Context, repo repository.CatalogRepository, code string) (*entity.Branch, error) {
	if utils.NormalizeCode(code) == "" {
		return nil, apperror.NewValidationError("Branch code is required", apperror.FieldError{Field: "branch_code", Message: "is required"})
	}
	branch, err := repo.GetBranchByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if branch == nil {
		return nil, apperror.NewNotFoundError(fmt.Sprintf("Branch %s", utils.NormalizeCode(code)))
	}
	return branch, nil
}

func requireItem(ctx context.Context, repo repository.CatalogRepository, sku string) (*entity.Item, error) {
	if utils.NormalizeCode(sku) == "" {
		return nil, apperror.NewValidationError("SKU is required", apperror.FieldError{Field: "sku", Message: "is required"})
	}
	item, err := repo.GetItemBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperror.NewNotFoundError(fmt.Sprintf("Item %s", utils.NormalizeCode(sku)))
	}
	return item, nil
}

func sameCode(a, b string) bool {
	na := utils.NormalizeCode(a)
	return na != "" && na == utils.NormalizeCode(b)
}

// failureReason is the client-facing message of err
func failureReason(err error) string {
	if appErr := apperror.GetAppError(err); appErr != nil {
		return appErr.Message
	}
	return err.Error()
}
