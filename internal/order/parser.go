package order

import (
	"regexp"
	"strconv"
	"strings"
)

// Item is a single item/quantity pair from a customer block.
type Item struct {
	Name     string
	Quantity int
}

// Parsed is one customer's order extracted from a chat message.
type Parsed struct {
	CustomerName string
	Items        []Item
}

var (
	blockStart = regexp.MustCompile(`^[a-zA-Z]+\s*:`)
	leadingInt = regexp.MustCompile(`^[+-]?[0-9]+`)
)

// ExtractFields returns the raw customer blocks that follow the first line
// containing keyword (case-insensitive). A block starts at a "Name:" line and
// absorbs every following line that does not start a new block.
func ExtractFields(message, keyword string) []string {
	var fields []string
	needle := strings.ToLower(keyword)
	found := false

	for _, line := range strings.Split(message, "\n") {
		if !found {
			if strings.Contains(strings.ToLower(line), needle) {
				found = true
			}
			continue
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if blockStart.MatchString(trimmed) {
			fields = append(fields, trimmed)
			continue
		}
		// Continuation before any block opened has nowhere to go.
		if len(fields) == 0 {
			continue
		}
		fields[len(fields)-1] += "\n" + trimmed
	}
	return fields
}

// Process parses every customer block after the keyword line. With onlyLast
// set, only the final block is returned; an empty parse stays empty.
func Process(message, keyword string, onlyLast bool) []Parsed {
	var orders []Parsed
	for _, field := range ExtractFields(message, keyword) {
		customer, text, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}
		customer = strings.TrimSpace(customer)
		items := parseItems(text)
		if customer == "" || len(items) == 0 {
			continue
		}
		orders = append(orders, Parsed{CustomerName: customer, Items: items})
	}

	if onlyLast && len(orders) > 0 {
		return orders[len(orders)-1:]
	}
	return orders
}

func parseItems(text string) []Item {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	segments := strings.Split(text, ",")
	items := make([]Item, 0, len(segments))
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		name, qty := seg, ""
		if i := strings.LastIndex(seg, " "); i >= 0 {
			name, qty = seg[:i], seg[i+1:]
		}
		items = append(items, Item{Name: strings.TrimSpace(name), Quantity: parseQuantity(qty)})
	}
	return items
}

// parseQuantity reads the leading integer of s, so "2pcs" is 2. Anything
// without one, or below 1, counts as 1.
func parseQuantity(s string) int {
	n, err := strconv.Atoi(leadingInt.FindString(strings.TrimSpace(s)))
	if err != nil || n < 1 {
		return 1
	}
	return n
}
