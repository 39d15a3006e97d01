package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/reservation-core/internal/query"
)

var ErrInvalidFilter = errors.New("invalid filter value")

type FieldType int

const (
	FieldString FieldType = iota
	FieldUUID
	FieldBool
	FieldOther
)

// Field: колонка, на которую отображается поле API.
type Field struct {
	Column string
	Type   FieldType
}

// Relation описывает переход на одну связанную сущность для поиска:
// LocalKey IN (SELECT Select FROM From WHERE ...).
type Relation struct {
	LocalKey string
	Select   string
	From     string
	Columns  map[string]string
}

// ListSpec связывает query.EntitySpec с таблицами конкретной сущности.
type ListSpec struct {
	query.EntitySpec
	Table     string
	Fields    map[string]Field
	Relations map[string]Relation
}

// scope применяет фильтры и поиск; сортировку и пагинацию: order/paginate.
func (s ListSpec) scope(db *gorm.DB, opts query.Options) (*gorm.DB, error) {
	for _, f := range opts.Filters {
		field, ok := s.Fields[f.Field]
		if !ok {
			continue
		}
		values, err := normalizeValues(f, field.Type)
		if err != nil {
			return nil, err
		}
		if len(values) == 1 {
			db = db.Where(fmt.Sprintf("%s = ?", field.Column), values[0])
		} else {
			db = db.Where(fmt.Sprintf("%s IN ?", field.Column), values)
		}
	}

	if opts.Search != "" && len(s.Searchable) > 0 {
		expr, args := s.search(opts.Search)
		db = db.Where(expr, args...)
	}

	return db, nil
}

func (s ListSpec) search(term string) (string, []any) {
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"

	parts := make([]string, 0, len(s.Searchable))
	args := make([]any, 0, len(s.Searchable))
	for _, name := range s.Searchable {
		if rel, field, ok := strings.Cut(name, "."); ok {
			r, ok := s.Relations[rel]
			if !ok {
				continue
			}
			col, ok := r.Columns[field]
			if !ok {
				continue
			}
			parts = append(parts, fmt.Sprintf(
				`%s IN (SELECT %s FROM %s WHERE LOWER(%s) LIKE ? ESCAPE '\')`,
				r.LocalKey, r.Select, r.From, col,
			))
		} else {
			f, ok := s.Fields[name]
			if !ok {
				continue
			}
			parts = append(parts, fmt.Sprintf(`LOWER(%s) LIKE ? ESCAPE '\'`, f.Column))
		}
		args = append(args, pattern)
	}

	return "(" + strings.Join(parts, " OR ") + ")", args
}

func (s ListSpec) order(db *gorm.DB, opts query.Options) *gorm.DB {
	sort := opts.Sort
	f, ok := s.Fields[sort.Field]
	if !ok {
		sort = s.DefaultSort
		f = s.Fields[sort.Field]
	}
	if f.Column != "" {
		db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: f.Column}, Desc: sort.Desc})
	}
	// стабильный порядок страниц при равных значениях
	return db.Order(clause.OrderByColumn{Column: clause.Column{Name: s.Table + ".id"}})
}

func paginate(db *gorm.DB, opts query.Options) *gorm.DB {
	if opts.Limit <= 0 {
		return db
	}
	return db.Limit(opts.Limit).Offset(opts.Offset())
}

func normalizeValues(f query.Filter, t FieldType) ([]any, error) {
	out := make([]any, 0, len(f.Values))
	for _, v := range f.Values {
		switch t {
		case FieldBool:
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("%w: %s must be true or false", ErrInvalidFilter, f.Field)
			}
			out = append(out, b)
		case FieldUUID:
			id, err := uuid.Parse(fmt.Sprint(v))
			if err != nil {
				return nil, fmt.Errorf("%w: %s must be a uuid", ErrInvalidFilter, f.Field)
			}
			out = append(out, id)
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
