package orders

import (
	"net/url"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/promoshop/promoshop/internal/models"
)

type SortKey string

const (
	SortDateDesc   SortKey = "date-desc"
	SortDateAsc    SortKey = "date-asc"
	SortAmountDesc SortKey = "amount-desc"
	SortAmountAsc  SortKey = "amount-asc"
)

// StatusAll disables the status filter.
const StatusAll = "all"

type Filter struct {
	Search string  `json:"search"`
	Status string  `json:"status"`
	Sort   SortKey `json:"sort"`
}

func ParseFilter(values url.Values) Filter {
	return Filter{
		Search: values.Get("search"),
		Status: values.Get("status"),
		Sort:   SortKey(values.Get("sort")),
	}.Normalized()
}

func (f Filter) Normalized() Filter {
	f.Search = strings.TrimSpace(f.Search)
	f.Status = strings.ToLower(strings.TrimSpace(f.Status))
	if f.Status == "" {
		f.Status = StatusAll
	}
	f.Sort = SortKey(strings.ToLower(strings.TrimSpace(string(f.Sort))))
	if f.Sort == "" {
		f.Sort = SortDateDesc
	}
	return f
}

func matches(order models.Order, filter Filter) bool {
	if filter.Status != StatusAll && string(order.Status) != filter.Status {
		return false
	}
	return matchesSearch(order, strings.ToLower(filter.Search))
}

func matchesSearch(order models.Order, term string) bool {
	if term == "" {
		return true
	}
	for _, field := range []string{
		order.ID,
		order.CustomerName,
		order.Phone,
		order.CampaignTitle,
		order.Address,
	} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

type rankedOrder struct {
	order models.Order
	total decimal.Decimal
}

// Query returns the visible subset of list for filter. The input slice is
// never modified. Sorting is stable; amount ties are ordered newest first.
// Unknown sort keys keep the incoming order.
func Query(list []models.Order, filter Filter) []models.Order {
	filter = filter.Normalized()

	ranked := make([]rankedOrder, 0, len(list))
	for _, order := range list {
		if matches(order, filter) {
			ranked = append(ranked, rankedOrder{order: order, total: order.TotalPrice()})
		}
	}

	if compare := comparatorFor(filter.Sort); compare != nil {
		slices.SortStableFunc(ranked, compare)
	}

	out := make([]models.Order, len(ranked))
	for i, item := range ranked {
		out[i] = item.order
	}
	return out
}

func comparatorFor(key SortKey) func(a, b rankedOrder) int {
	newestFirst := func(a, b rankedOrder) int {
		return b.order.CreatedAt.Compare(a.order.CreatedAt)
	}

	switch key {
	case SortDateDesc:
		return newestFirst
	case SortDateAsc:
		return func(a, b rankedOrder) int {
			return a.order.CreatedAt.Compare(b.order.CreatedAt)
		}
	case SortAmountDesc:
		return func(a, b rankedOrder) int {
			if c := b.total.Cmp(a.total); c != 0 {
				return c
			}
			return newestFirst(a, b)
		}
	case SortAmountAsc:
		return func(a, b rankedOrder) int {
			if c := a.total.Cmp(b.total); c != 0 {
				return c
			}
			return newestFirst(a, b)
		}
	default:
		return nil
	}
}
