package option

import (
	"fmt"
	"strings"

	"smallbiznis-reputation/pkg/db/pagination"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// QueryOption mutates a query before it is executed by a repository.
type QueryOption func(*gorm.DB) *gorm.DB

type Operator string

const (
	EQ  Operator = "="
	NEQ Operator = "<>"
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
	IN  Operator = "IN"
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// ApplyOperator adds a single WHERE condition. Field names are trusted
// input from code, never from requests.
func ApplyOperator(c Condition) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		if c.Operator == IN {
			return db.Where(fmt.Sprintf("%s IN ?", c.Field), c.Value)
		}
		return db.Where(fmt.Sprintf("%s %s ?", c.Field, c.Operator), c.Value)
	}
}

// ApplyJSONContains keeps rows whose JSON array column holds value.
func ApplyJSONContains(field string, value any) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(datatypes.JSONArrayQuery(field).Contains(value))
	}
}

type QuerySortBy struct {
	SortBy  string
	OrderBy string
	Allow   map[string]bool
}

// WithSortBy orders by SortBy when it is allowed, falling back to created_at.
func WithSortBy(s QuerySortBy) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		field := "created_at"
		if s.SortBy != "" && s.Allow[s.SortBy] {
			field = s.SortBy
		}

		order := "asc"
		if strings.EqualFold(s.OrderBy, "desc") {
			order = "desc"
		}

		return db.Order(fmt.Sprintf("%s %s", field, order))
	}
}

// ApplyPagination limits the result set and applies the decoded cursor,
// fetching one extra row so callers can compute HasMore.
func ApplyPagination(p pagination.Pagination) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		limit := p.Limit
		if limit <= 0 {
			limit = 10
		}

		if p.Cursor != "" {
			if cursor, err := pagination.DecodeCursor(p.Cursor); err == nil && cursor.ID != "" {
				db = db.Where("id < ?", cursor.ID)
			}
		}

		return db.Order("id desc").Limit(limit + 1)
	}
}

func WithLimit(n int) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		return db.Limit(n)
	}
}
