package store

// Order is a persisted order header. One row per accepted message.
type Order struct {
	ID           int64
	OrderID      string
	OrderDate    string
	ChatID       int64
	ChatTitle    string
	Sender       string
	SenderID     int64
	CustomerName string
}

// OrderItem is one item line belonging to an order.
type OrderItem struct {
	OrderID  string
	Name     string
	Quantity int
}

// TrackingRecord marks a chat message as handled.
type TrackingRecord struct {
	ChatID    int64
	ChatTitle string
	MsgID     int64
}
