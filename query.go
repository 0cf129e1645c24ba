package effers

import (
	"database/sql"
	"fmt"
	"strings"
)

// QueryBuilder answers listing and search questions over the manifest.
type QueryBuilder struct {
	store *Store
}

// NewQueryBuilder returns a QueryBuilder reading from s.
func NewQueryBuilder(s *Store) *QueryBuilder {
	return &QueryBuilder{store: s}
}

// Query returns a QueryBuilder over the engine's manifest.
func (e *Engine) Query() *QueryBuilder {
	return NewQueryBuilder(e.store)
}

// Pagination controls offset+limit paging on list/search results.
type Pagination struct {
	Offset int // skip this many results (default 0)
	Limit  int // max results to return (default 50, max 500)
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

// normalize returns a Pagination with defaults applied and bounds enforced.
func (p Pagination) normalize() Pagination {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// SortField specifies how to order results.
type SortField string

const (
	SortByName      SortField = "name"
	SortByFile      SortField = "file"
	SortByEffects   SortField = "effects"
	SortByRewritten SortField = "rewritten"
)

// SortOrder specifies ascending or descending.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// Sort controls result ordering.
type Sort struct {
	Field SortField
	Order SortOrder
}

// PagedResult wraps a page of results with total count for pagination.
type PagedResult[T any] struct {
	Items      []T
	TotalCount int // total matching results (before pagination)
}

// ProgramFilter specifies which programs to include. All fields are optional.
type ProgramFilter struct {
	// Effect keeps programs with a layer for this interface. A bare name
	// also matches package-qualified interfaces ("Incrementer" matches
	// "inc.Incrementer").
	Effect      *string
	Package     *string // exact package name
	PathPrefix  *string // restrict to programs in files under this path
	Passthrough *bool
	Shadowed    bool // only programs with at least one shadowed operation
}

// ProgramResult extends Program with counts computed by the query.
type ProgramResult struct {
	Program
	Effects  int // number of layers
	Shadowed int // operations whose call name an earlier effect claimed
}

func programSortColumn(field SortField) string {
	switch field {
	case SortByFile:
		return "f.path"
	case SortByEffects:
		return "effects"
	case SortByRewritten:
		return "p.rewritten"
	default:
		return "p.name"
	}
}

func sortDirection(order SortOrder) string {
	if order == Desc {
		return "DESC"
	}
	return "ASC"
}

// Programs lists recorded programs matching filter.
func (q *QueryBuilder) Programs(filter ProgramFilter, sort Sort, page Pagination) (*PagedResult[ProgramResult], error) {
	return q.SearchPrograms("", filter, sort, page)
}

// SearchPrograms lists programs whose name matches a glob pattern, where *
// matches any run of characters. An empty pattern or "*" matches everything.
func (q *QueryBuilder) SearchPrograms(pattern string, filter ProgramFilter, sort Sort, page Pagination) (*PagedResult[ProgramResult], error) {
	page = page.normalize()

	var where []string
	var args []any

	// Escape literal % and _ first, then convert * to %
	if pattern != "" && pattern != "*" {
		likePattern := strings.ReplaceAll(escapeLike(pattern), "*", "%")
		where = append(where, "p.name LIKE ? ESCAPE '\\'")
		args = append(args, likePattern)
	}
	if filter.Effect != nil {
		where = append(where, `EXISTS (SELECT 1 FROM layers l WHERE l.program_id = p.id
			AND (l.interface = ? OR l.interface LIKE ? ESCAPE '\'))`)
		args = append(args, *filter.Effect, "%."+escapeLike(*filter.Effect))
	}
	if filter.Package != nil {
		where = append(where, "f.package = ?")
		args = append(args, *filter.Package)
	}
	if filter.PathPrefix != nil {
		if prefix := normalizePathPrefix(*filter.PathPrefix); prefix != "" {
			where = append(where, "f.path LIKE ? ESCAPE '\\'")
			args = append(args, escapeLike(prefix)+"%")
		}
	}
	if filter.Passthrough != nil {
		where = append(where, "p.passthrough = ?")
		args = append(args, *filter.Passthrough)
	}
	if filter.Shadowed {
		where = append(where, "EXISTS (SELECT 1 FROM operations o WHERE o.program_id = p.id AND o.shadowed)")
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countSQL := `SELECT COUNT(*) FROM programs p JOIN files f ON f.id = p.file_id ` + whereClause
	var totalCount int
	if err := q.store.DB().QueryRow(countSQL, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("search programs: count: %w", err)
	}

	dataSQL := `SELECT p.id, p.file_id, p.name, p.func_name, p.receiver, p.line, p.rewritten, p.passthrough, f.path,
		(SELECT COUNT(*) FROM layers l WHERE l.program_id = p.id) AS effects,
		(SELECT COUNT(*) FROM operations o WHERE o.program_id = p.id AND o.shadowed) AS shadowed
		FROM programs p JOIN files f ON f.id = p.file_id ` + whereClause +
		fmt.Sprintf(" ORDER BY %s %s, f.path, p.line LIMIT ? OFFSET ?",
			programSortColumn(sort.Field), sortDirection(sort.Order))
	dataArgs := append(args, page.Limit, page.Offset)

	rows, err := q.store.DB().Query(dataSQL, dataArgs...)
	if err != nil {
		return nil, fmt.Errorf("search programs: %w", err)
	}
	defer rows.Close()

	var items []ProgramResult
	for rows.Next() {
		var r ProgramResult
		var receiver sql.NullString
		if err := rows.Scan(
			&r.ID, &r.FileID, &r.Name, &r.FuncName, &receiver, &r.Line, &r.Rewritten, &r.Passthrough, &r.Path,
			&r.Effects, &r.Shadowed,
		); err != nil {
			return nil, fmt.Errorf("search programs: scan: %w", err)
		}
		r.Receiver = receiver.String
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &PagedResult[ProgramResult]{Items: items, TotalCount: totalCount}, nil
}

// normalizePathPrefix ensures a path prefix ends with "/" for correct LIKE matching.
// "examples/mycool" -> "examples/mycool/" to prevent matching "examples/mycool_old/".
func normalizePathPrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	if !strings.HasSuffix(prefix, "/") {
		return prefix + "/"
	}
	return prefix
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
