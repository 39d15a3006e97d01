package query

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSpec = EntitySpec{
	Filterable:     []string{"status", "isActive", "staffId"},
	Sortable:       []string{"createdAt", "startTime"},
	Searchable:     []string{"name", "service.name"},
	DefaultSort:    Sort{Field: "createdAt", Desc: true},
	DefaultFilters: map[string]any{"isActive": true},
	Extras:         []string{"date"},
}

func TestNewMeta_PaginationMath(t *testing.T) {
	m := NewMeta(3, 10, 25)
	assert.Equal(t, 3, m.TotalPages)

	assert.Equal(t, 0, NewMeta(1, 10, 0).TotalPages)
	assert.Equal(t, 1, NewMeta(1, 10, 10).TotalPages)
	assert.Equal(t, 2, NewMeta(1, 10, 11).TotalPages)
}

func TestParse_PaginationDefaults(t *testing.T) {
	cases := []struct {
		query       string
		page, limit int
		offset      int
	}{
		{"", 1, 10, 0},
		{"page=3&limit=10", 3, 10, 20},
		{"page=0&limit=-5", 1, 10, 0},
		{"page=abc&limit=xyz", 1, 10, 0},
		{"page=2&limit=1000", 2, MaxLimit, MaxLimit},
	}
	for _, tc := range cases {
		v, err := url.ParseQuery(tc.query)
		require.NoError(t, err)

		opts := Parse(v, testSpec)
		assert.Equal(t, tc.page, opts.Page, tc.query)
		assert.Equal(t, tc.limit, opts.Limit, tc.query)
		assert.Equal(t, tc.offset, opts.Offset(), tc.query)
	}
}

func TestParse_Sort(t *testing.T) {
	cases := []struct {
		query string
		want  Sort
	}{
		{"sort=startTime:desc", Sort{Field: "startTime", Desc: true}},
		{"sort=startTime", Sort{Field: "startTime"}},
		{"sortBy=startTime&sortOrder=descend", Sort{Field: "startTime", Desc: true}},
		{"sortBy=startTime&sortOrder=ascend", Sort{Field: "startTime"}},
		{"sort=password:asc", testSpec.DefaultSort},
		{"", testSpec.DefaultSort},
	}
	for _, tc := range cases {
		v, _ := url.ParseQuery(tc.query)
		assert.Equal(t, tc.want, Parse(v, testSpec).Sort, tc.query)
	}
}

func TestCoerce_Equivalence(t *testing.T) {
	// "true" и true задают одно и то же ограничение.
	vals, ok := Coerce("true")
	require.True(t, ok)
	assert.Equal(t, []any{true}, vals)

	// "a,b,c" эквивалентно списку ["a","b","c"].
	vals, ok = Coerce("a,b,c")
	require.True(t, ok)
	assert.Equal(t, []any{"a", "b", "c"}, vals)
	assert.Equal(t, []any{"a", "b", "c"}, Filter{Values: vals}.Value())

	// Список из одного элемента: скаляр.
	vals, ok = Coerce("a,")
	require.True(t, ok)
	assert.Equal(t, "a", Filter{Values: vals}.Value())

	// Только булевы значения: ограничения нет.
	_, ok = Coerce("true,false")
	assert.False(t, ok)

	// Смешанный список сохраняется с приведением булевых.
	vals, ok = Coerce("x,true")
	require.True(t, ok)
	assert.Equal(t, []any{"x", true}, vals)
}

func TestParse_Filters(t *testing.T) {
	v, _ := url.ParseQuery("status=PENDING,CONFIRMED&filters[staffId]=abc&unknown=1")
	opts := Parse(v, testSpec)

	status, ok := opts.Filter("status")
	require.True(t, ok)
	assert.True(t, status.IsList())
	assert.Equal(t, []any{"PENDING", "CONFIRMED"}, status.Values)

	staff, ok := opts.Filter("staffId")
	require.True(t, ok)
	assert.Equal(t, "abc", staff.Value())

	_, ok = opts.Filter("unknown")
	assert.False(t, ok)

	// Значение по умолчанию для isActive.
	active, ok := opts.Filter("isActive")
	require.True(t, ok)
	assert.Equal(t, true, active.Value())
}

func TestParse_DefaultFilterOverrides(t *testing.T) {
	v, _ := url.ParseQuery("isActive=false")
	f, ok := Parse(v, testSpec).Filter("isActive")
	require.True(t, ok)
	assert.Equal(t, false, f.Value())

	// "true,false" снимает ограничение, в том числе значение по умолчанию.
	v, _ = url.ParseQuery("isActive=true,false")
	_, ok = Parse(v, testSpec).Filter("isActive")
	assert.False(t, ok)
}

func TestParse_SearchAndExtras(t *testing.T) {
	v, _ := url.ParseQuery("q=  anna &date=2025-01-02")
	opts := Parse(v, testSpec)
	assert.Equal(t, "anna", opts.Search)
	assert.Equal(t, "2025-01-02", opts.Extra["date"])

	v, _ = url.ParseQuery("search=bob&q=anna")
	assert.Equal(t, "bob", Parse(v, testSpec).Search)
}

func TestMap_KeepsMeta(t *testing.T) {
	p := NewPage([]int{1, 2}, Options{Page: 1, Limit: 2}, 5)
	out := Map(p, func(i int) string { return string(rune('a' + i)) })

	assert.Equal(t, []string{"b", "c"}, out.Items)
	assert.Equal(t, 3, out.Meta.TotalPages)
}
