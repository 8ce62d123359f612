package dto

import (
	"prodledger/internal/domain"
	"prodledger/internal/domain/catalogs/line"
	"prodledger/internal/domain/catalogs/style"
)

// CatalogListQuery holds catalog list query parameters.
type CatalogListQuery struct {
	PageQuery
	Search     string   `form:"search"`
	Codes      []string `form:"code"`
	ActiveOnly bool     `form:"activeOnly"`
}

// ToFilter maps the query to a catalog filter.
func (q CatalogListQuery) ToFilter() domain.ListFilter {
	f := domain.DefaultListFilter()
	f.Search = q.Search
	f.Codes = q.Codes
	f.ActiveOnly = q.ActiveOnly
	if q.Limit > 0 {
		f.Limit = q.Limit
	}
	f.Offset = q.Offset
	return f
}

// SetActiveRequest toggles a catalog item.
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// CreateLineRequest is the body of POST /catalog/lines.
type CreateLineRequest struct {
	Code      string `json:"code" binding:"required"`
	Name      string `json:"name" binding:"required"`
	Floor     string `json:"floor"`
	Operators int    `json:"operators" binding:"min=0"`
}

// ToLine maps the request to a new line.
func (r CreateLineRequest) ToLine() *line.Line {
	l := line.NewLine(r.Code, r.Name)
	l.Floor = r.Floor
	l.Operators = r.Operators
	return l
}

// CreateStyleRequest is the body of POST /catalog/styles.
type CreateStyleRequest struct {
	Code  string `json:"code" binding:"required"`
	Name  string `json:"name" binding:"required"`
	Buyer string `json:"buyer"`
	SMV   int64  `json:"smv" binding:"min=0"`
}

// ToStyle maps the request to a new style.
func (r CreateStyleRequest) ToStyle() *style.Style {
	s := style.NewStyle(r.Code, r.Name)
	s.Buyer = r.Buyer
	s.SMV = r.SMV
	return s
}
