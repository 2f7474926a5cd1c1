package store

import (
	"strings"

	"gorm.io/gorm"
)

// queryFn narrows a list query. Filters collect them and apply with Scopes.
type queryFn = func(tx *gorm.DB) *gorm.DB

// Page is a normalized offset window.
type Page struct {
	Number int
	Size   int
}

func newPage(number, size, defaultSize, maxSize int) Page {
	if number < 1 {
		number = 1
	}
	if size < 1 {
		size = defaultSize
	}
	if size > maxSize {
		size = maxSize
	}
	return Page{Number: number, Size: size}
}

func (p Page) scope(tx *gorm.DB) *gorm.DB {
	return tx.Offset((p.Number - 1) * p.Size).Limit(p.Size)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching term as a literal
// case-folded substring. Pair it with LOWER(column) and ESCAPE '\'.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
}

func searchAny(term string, columns ...string) queryFn {
	return func(tx *gorm.DB) *gorm.DB {
		pattern := containsPattern(term)
		clauses := make([]string, len(columns))
		args := make([]any, len(columns))
		for i, col := range columns {
			clauses[i] = "LOWER(" + col + `) LIKE ? ESCAPE '\'`
			args[i] = pattern
		}
		return tx.Where("("+strings.Join(clauses, " OR ")+")", args...)
	}
}
