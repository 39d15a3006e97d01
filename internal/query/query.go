// Package query разбирает параметры списочных запросов (пагинация, сортировка,
// фильтры, поиск) в нейтральную структуру Options.
// Перевод Options в SQL делается в репозиториях.
package query

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

type Sort struct {
	Field string
	Desc  bool
}

// Filter ограничивает поле: одно значение даёт равенство, несколько дают IN.
type Filter struct {
	Field  string
	Values []any
}

// Value возвращает скалярное значение для фильтра-равенства.
func (f Filter) Value() any {
	if len(f.Values) == 1 {
		return f.Values[0]
	}
	return f.Values
}

func (f Filter) IsList() bool { return len(f.Values) > 1 }

// EntitySpec: разрешённые поля сущности для списочного запроса.
type EntitySpec struct {
	Filterable []string
	Sortable   []string
	// Поля поиска; "relation.field" означает поле связанной сущности.
	Searchable  []string
	DefaultSort Sort
	// Применяются, если вызывающий не передал фильтр с тем же именем.
	DefaultFilters map[string]any
	// Дополнительные параметры, которые сущность обрабатывает сама (например, date).
	Extras []string
}

type Options struct {
	Page    int
	Limit   int
	Sort    Sort
	Filters []Filter
	Search  string
	Extra   map[string]string
}

func (o Options) Offset() int {
	return (o.Page - 1) * o.Limit
}

// Filter возвращает фильтр по имени поля.
func (o Options) Filter(field string) (Filter, bool) {
	for _, f := range o.Filters {
		if f.Field == field {
			return f, true
		}
	}
	return Filter{}, false
}

// Parse собирает Options из query-строки согласно spec.
func Parse(values url.Values, spec EntitySpec) Options {
	opts := Options{
		Page:  parsePositive(values.Get("page"), DefaultPage),
		Limit: parsePositive(values.Get("limit"), DefaultLimit),
		Sort:  parseSort(values, spec),
	}
	if opts.Limit > MaxLimit {
		opts.Limit = MaxLimit
	}

	for _, field := range spec.Filterable {
		raw := lookup(values, field)
		if raw == "" {
			continue
		}
		if vals, ok := Coerce(raw); ok {
			opts.Filters = append(opts.Filters, Filter{Field: field, Values: vals})
		}
	}
	for _, field := range spec.Filterable {
		def, ok := spec.DefaultFilters[field]
		if !ok {
			continue
		}
		if _, supplied := opts.Filter(field); supplied {
			continue
		}
		if lookup(values, field) != "" {
			// Передан, но отброшен коэрсией ("true,false"): ограничения нет.
			continue
		}
		opts.Filters = append(opts.Filters, Filter{Field: field, Values: []any{def}})
	}

	for _, key := range []string{"search", "q"} {
		if s := strings.TrimSpace(values.Get(key)); s != "" {
			opts.Search = s
			break
		}
	}

	for _, key := range spec.Extras {
		if v := strings.TrimSpace(lookup(values, key)); v != "" {
			if opts.Extra == nil {
				opts.Extra = make(map[string]string)
			}
			opts.Extra[key] = v
		}
	}

	return opts
}

// Coerce приводит строковое значение фильтра:
//   - "a,b,c" -> ["a","b","c"];
//   - "true"/"false" -> bool;
//   - список из одного элемента -> скаляр;
//   - список только из булевых значений ограничения не несёт (ok=false).
func Coerce(raw string) (values []any, ok bool) {
	if !strings.Contains(raw, ",") {
		return []any{coerceScalar(strings.TrimSpace(raw))}, true
	}

	allBool := true
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v := coerceScalar(part)
		if _, isBool := v.(bool); !isBool {
			allBool = false
		}
		values = append(values, v)
	}

	switch {
	case len(values) == 0:
		return nil, false
	case len(values) == 1:
		return values, true
	case allBool:
		return nil, false
	}
	return values, true
}

func coerceScalar(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}

func parseSort(values url.Values, spec EntitySpec) Sort {
	field, order := "", ""
	if raw := strings.TrimSpace(values.Get("sort")); raw != "" {
		field, order, _ = strings.Cut(raw, ":")
	} else {
		field = strings.TrimSpace(values.Get("sortBy"))
		order = values.Get("sortOrder")
	}

	if field == "" || !contains(spec.Sortable, field) {
		return spec.DefaultSort
	}

	switch strings.ToLower(strings.TrimSpace(order)) {
	case "desc", "descend":
		return Sort{Field: field, Desc: true}
	default:
		return Sort{Field: field}
	}
}

// lookup читает field= или filters[field]=.
func lookup(values url.Values, field string) string {
	if v := values.Get(field); v != "" {
		return v
	}
	return values.Get("filters[" + field + "]")
}

func parsePositive(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return def
	}
	return n
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

func NewMeta(page, limit int, total int64) Meta {
	pages := 0
	if limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return Meta{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// Page описывает одну страницу элементов.
type Page[T any] struct {
	Items []T
	Meta  Meta
}

func NewPage[T any](items []T, opts Options, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Meta: NewMeta(opts.Page, opts.Limit, total)}
}

// Map переводит элементы страницы в другой тип, сохраняя метаданные.
func Map[T, R any](p Page[T], fn func(T) R) Page[R] {
	out := make([]R, 0, len(p.Items))
	for _, it := range p.Items {
		out = append(out, fn(it))
	}
	return Page[R]{Items: out, Meta: p.Meta}
}
