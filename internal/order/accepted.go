package order

// Accepted is an order that passed every guard and was stored. It is what
// the spreadsheet mirror and event publishers receive.
type Accepted struct {
	ID        string
	Date      string
	ChatID    int64
	ChatTitle string
	Sender    string
	SenderID  int64
	MessageID int64
	Orders    []Parsed
}

// ItemCount returns the number of item lines across all customers.
func (a *Accepted) ItemCount() int {
	n := 0
	for _, o := range a.Orders {
		n += len(o.Items)
	}
	return n
}
