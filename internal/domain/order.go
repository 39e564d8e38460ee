package domain

// Order lifecycle. Cancellation is only reachable before fulfilment starts.
const (
	OrderPending    = "pending"
	OrderConfirmed  = "confirmed"
	OrderProcessing = "processing"
	OrderShipped    = "shipped"
	OrderDelivered  = "delivered"
	OrderCancelled  = "cancelled"
)

var orderNext = map[string][]string{
	OrderPending:    {OrderConfirmed, OrderCancelled},
	OrderConfirmed:  {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipped},
	OrderShipped:    {OrderDelivered},
}

// ValidOrderTransition reports whether an order may move from -> to.
func ValidOrderTransition(from, to string) bool {
	for _, s := range orderNext[from] {
		if s == to {
			return true
		}
	}
	return false
}

// OrderCancellable reports whether a buyer may still cancel.
func OrderCancellable(status string) bool {
	return status == OrderPending || status == OrderConfirmed
}

type Order struct {
	ID         string `db:"id" json:"id"`
	BuyerID    string `db:"buyer_id" json:"buyer_id"`
	AddressID  string `db:"address_id" json:"address_id"`
	Status     string `db:"status" json:"status"`
	TotalCents int64  `db:"total_cents" json:"total_cents"`
	Currency   string `db:"currency" json:"currency"`
	CreatedAt  string `db:"created_at" json:"created_at"`
	UpdatedAt  string `db:"updated_at" json:"updated_at,omitempty"`

	Items []OrderItem `db:"-" json:"items,omitempty"`
}

// OrderItem snapshots title and unit price at purchase time so later product
// edits do not rewrite order history.
type OrderItem struct {
	OrderID   string `db:"order_id" json:"-"`
	ProductID string `db:"product_id" json:"product_id"`
	SellerID  string `db:"seller_id" json:"seller_id"`
	Title     string `db:"title" json:"title"`
	UnitCents int64  `db:"unit_cents" json:"unit_cents"`
	Qty       int    `db:"qty" json:"qty"`
}
