package view

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/register/internal/appointments"
	"golang.org/x/text/cases"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// ErrInvalidQuery indicates an unknown sort column or order.
var ErrInvalidQuery = errors.New("view: invalid query")

// SortColumn names a sortable table column.
type SortColumn string

const (
	SortByToken    SortColumn = "token"
	SortByName     SortColumn = "name"
	SortByPhone    SortColumn = "phone"
	SortByDate     SortColumn = "date"
	SortByTime     SortColumn = "time"
	SortByApproved SortColumn = "approved"
)

// ParseSortColumn validates a raw column name. An empty name sorts by token.
func ParseSortColumn(raw string) (SortColumn, error) {
	switch column := SortColumn(strings.ToLower(strings.TrimSpace(raw))); column {
	case "":
		return SortByToken, nil
	case SortByToken, SortByName, SortByPhone, SortByDate, SortByTime, SortByApproved:
		return column, nil
	default:
		return "", fmt.Errorf("%w: unknown sort column %q", ErrInvalidQuery, raw)
	}
}

// ParseDescending validates a raw sort order ("asc" or "desc").
func ParseDescending(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "asc":
		return false, nil
	case "desc":
		return true, nil
	default:
		return false, fmt.Errorf("%w: unknown order %q", ErrInvalidQuery, raw)
	}
}

// Query selects a page of rows.
type Query struct {
	Search     string
	SortColumn SortColumn
	Descending bool
	Page       int
	PageSize   int
}

// Page is one page of query results.
type Page struct {
	Rows     []Row
	Total    int
	Filtered int
	Page     int
	PageSize int
	Pages    int
}

// TableIndex is the sort/search/paginate layer wrapped around the row mirror.
// It is rebuilt from scratch on every full render; a destroyed index ignores
// further row updates.
type TableIndex struct {
	haystacks map[appointments.Token]string
	destroyed bool
}

// NewTableIndex builds an index over the given rows.
func NewTableIndex(rows []Row) *TableIndex {
	index := &TableIndex{haystacks: make(map[appointments.Token]string, len(rows))}
	caser := cases.Fold()
	for _, row := range rows {
		index.haystacks[row.Record.Token] = haystackFor(caser, row.Record)
	}
	return index
}

// Destroy releases the index bindings.
func (index *TableIndex) Destroy() {
	index.haystacks = nil
	index.destroyed = true
}

// Destroyed reports whether Destroy has been called.
func (index *TableIndex) Destroyed() bool {
	return index.destroyed
}

// Upsert indexes a new or patched row.
func (index *TableIndex) Upsert(record appointments.Appointment) {
	if index.destroyed {
		return
	}
	index.haystacks[record.Token] = haystackFor(cases.Fold(), record)
}

// Remove drops a row from the index.
func (index *TableIndex) Remove(token appointments.Token) {
	if index.destroyed {
		return
	}
	delete(index.haystacks, token)
}

// Size reports how many rows are indexed.
func (index *TableIndex) Size() int {
	return len(index.haystacks)
}

// Query filters, sorts and paginates rows, which must be given in display order.
func (index *TableIndex) Query(rows []Row, query Query) Page {
	terms := strings.Fields(cases.Fold().String(query.Search))

	filtered := make([]Row, 0, len(rows))
	for _, row := range rows {
		if index.matches(row.Record.Token, terms) {
			filtered = append(filtered, row)
		}
	}

	column := query.SortColumn
	if column == "" {
		column = SortByToken
	}
	slices.SortStableFunc(filtered, func(left, right Row) int {
		order := compareColumn(column, left.Record, right.Record)
		if order == 0 {
			order = cmp.Compare(left.Record.Token, right.Record.Token)
		}
		if query.Descending {
			return -order
		}
		return order
	})

	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	pages := (len(filtered) + pageSize - 1) / pageSize
	page := query.Page
	if page <= 0 {
		page = 1
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(filtered) {
		start = len(filtered)
	}
	if end > len(filtered) {
		end = len(filtered)
	}

	return Page{
		Rows:     filtered[start:end],
		Total:    len(rows),
		Filtered: len(filtered),
		Page:     page,
		PageSize: pageSize,
		Pages:    pages,
	}
}

func (index *TableIndex) matches(token appointments.Token, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	haystack, ok := index.haystacks[token]
	if !ok {
		return false
	}
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}

func haystackFor(caser cases.Caser, record appointments.Appointment) string {
	approved := "pending"
	if record.Approved {
		approved = "approved"
	}
	return caser.String(strings.Join([]string{
		strconv.FormatInt(record.Token.Int64(), 10),
		record.Name,
		record.Phone,
		record.Date,
		record.Time,
		approved,
	}, "\x00"))
}

func compareColumn(column SortColumn, left, right appointments.Appointment) int {
	switch column {
	case SortByName:
		return strings.Compare(left.Name, right.Name)
	case SortByPhone:
		return strings.Compare(left.Phone, right.Phone)
	case SortByDate:
		return strings.Compare(left.Date, right.Date)
	case SortByTime:
		return strings.Compare(left.Time, right.Time)
	case SortByApproved:
		return compareBool(left.Approved, right.Approved)
	default:
		return cmp.Compare(left.Token, right.Token)
	}
}

func compareBool(left, right bool) int {
	switch {
	case left == right:
		return 0
	case !left:
		return -1
	default:
		return 1
	}
}
