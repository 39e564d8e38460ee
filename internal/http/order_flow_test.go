package handlers_test

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"tradepost/internal/domain"
)

func fetchProduct(t *testing.T, e *env, token, id string) domain.Product {
	t.Helper()
	resp := do(t, e, jsonReq("GET", "/api/v1/products/"+id, "", token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fetch product %s: want 200, got %d", id, resp.StatusCode)
	}
	var p domain.Product
	dataInto(t, decode(t, resp), &p)
	return p
}

func TestPlaceOrderMergesLinesAndDecrementsStock(t *testing.T) {
	e := newEnv(t)
	buyer := seedUser(t, e, "buyer@tradepost.test", domain.RoleBuyer)
	seller := seedUser(t, e, "seller@tradepost.test", domain.RoleSeller)
	addr := seedAddress(t, e, buyer.ID)
	p := seedProduct(t, e, seller.ID, "Turntable", 2500, 5)

	buyerTok := login(t, e, "buyer@tradepost.test")
	sellerTok := login(t, e, "seller@tradepost.test")

	// the same product twice in one request collapses into a single line
	body := fmt.Sprintf(`{"address_id":%q,"items":[{"product_id":%q,"qty":2},{"product_id":%q,"qty":1}]}`,
		addr.ID, p.ID, p.ID)
	resp := do(t, e, jsonReq("POST", "/api/v1/orders", body, buyerTok))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("place order: want 201, got %d", resp.StatusCode)
	}
	var o domain.Order
	dataInto(t, decode(t, resp), &o)
	if o.Status != domain.OrderPending {
		t.Fatalf("new order status: want pending, got %q", o.Status)
	}
	if o.TotalCents != 3*2500 {
		t.Fatalf("order total: want 7500, got %d", o.TotalCents)
	}
	if len(o.Items) != 1 || o.Items[0].Qty != 3 || o.Items[0].UnitCents != 2500 {
		t.Fatalf("merged line: want qty 3 at 2500, got %+v", o.Items)
	}

	if got := fetchProduct(t, e, sellerTok, p.ID).Stock; got != 2 {
		t.Fatalf("stock after order: want 2, got %d", got)
	}
}

func TestPlaceOrderInsufficientStockWritesNothing(t *testing.T) {
	e := newEnv(t)
	buyer := seedUser(t, e, "buyer@tradepost.test", domain.RoleBuyer)
	seller := seedUser(t, e, "seller@tradepost.test", domain.RoleSeller)
	addr := seedAddress(t, e, buyer.ID)
	scarce := seedProduct(t, e, seller.ID, "Last Copy", 9900, 1)
	plenty := seedProduct(t, e, seller.ID, "Common Item", 500, 50)

	buyerTok := login(t, e, "buyer@tradepost.test")
	sellerTok := login(t, e, "seller@tradepost.test")

	body := fmt.Sprintf(`{"address_id":%q,"items":[{"product_id":%q,"qty":10},{"product_id":%q,"qty":2}]}`,
		addr.ID, plenty.ID, scarce.ID)
	resp := do(t, e, jsonReq("POST", "/api/v1/orders", body, buyerTok))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("oversell: want 409, got %d", resp.StatusCode)
	}
	ev := decode(t, resp)
	if !strings.Contains(ev.Message, "insufficient stock") {
		t.Fatalf("oversell message: got %q", ev.Message)
	}

	// the whole order rolled back, including the line that had stock
	if got := fetchProduct(t, e, sellerTok, plenty.ID).Stock; got != 50 {
		t.Fatalf("stock after failed order: want 50, got %d", got)
	}
	var n int
	if err := e.db.Get(&n, `SELECT COUNT(*) FROM orders`); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("orders after failed place: want 0 rows, got %d", n)
	}
}

func TestPlaceOrderRejectsForeignAddressAndInactiveProduct(t *testing.T) {
	e := newEnv(t)
	buyer := seedUser(t, e, "buyer@tradepost.test", domain.RoleBuyer)
	other := seedUser(t, e, "other@tradepost.test", domain.RoleBuyer)
	seller := seedUser(t, e, "seller@tradepost.test", domain.RoleSeller)
	otherAddr := seedAddress(t, e, other.ID)
	addr := seedAddress(t, e, buyer.ID)
	p := seedProduct(t, e, seller.ID, "Amp", 12000, 3)

	buyerTok := login(t, e, "buyer@tradepost.test")
	sellerTok := login(t, e, "seller@tradepost.test")

	body := fmt.Sprintf(`{"address_id":%q,"items":[{"product_id":%q,"qty":1}]}`, otherAddr.ID, p.ID)
	resp := do(t, e, jsonReq("POST", "/api/v1/orders", body, buyerTok))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("foreign address: want 400, got %d", resp.StatusCode)
	}

	// deactivated listings cannot be ordered
	resp = do(t, e, jsonReq("DELETE", "/api/v1/products/"+p.ID, "", sellerTok))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deactivate: want 200, got %d", resp.StatusCode)
	}
	body = fmt.Sprintf(`{"address_id":%q,"items":[{"product_id":%q,"qty":1}]}`, addr.ID, p.ID)
	resp = do(t, e, jsonReq("POST", "/api/v1/orders", body, buyerTok))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("inactive product: want 400, got %d", resp.StatusCode)
	}
}

func placeOrder(t *testing.T, e *env, token, addrID, productID string, qty int) domain.Order {
	t.Helper()
	body := fmt.Sprintf(`{"address_id":%q,"items":[{"product_id":%q,"qty":%d}]}`, addrID, productID, qty)
	resp := do(t, e, jsonReq("POST", "/api/v1/orders", body, token))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("place order: want 201, got %d", resp.StatusCode)
	}
	var o domain.Order
	dataInto(t, decode(t, resp), &o)
	return o
}

func TestCancelRestocksThenRefusesRepeat(t *testing.T) {
	e := newEnv(t)
	buyer := seedUser(t, e, "buyer@tradepost.test", domain.RoleBuyer)
	seller := seedUser(t, e, "seller@tradepost.test", domain.RoleSeller)
	addr := seedAddress(t, e, buyer.ID)
	p := seedProduct(t, e, seller.ID, "Speaker", 8000, 4)

	buyerTok := login(t, e, "buyer@tradepost.test")
	sellerTok := login(t, e, "seller@tradepost.test")

	o := placeOrder(t, e, buyerTok, addr.ID, p.ID, 3)
	if got := fetchProduct(t, e, sellerTok, p.ID).Stock; got != 1 {
		t.Fatalf("stock after order: want 1, got %d", got)
	}

	resp := do(t, e, jsonReq("POST", "/api/v1/orders/"+o.ID+"/cancel", "", buyerTok))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel: want 200, got %d", resp.StatusCode)
	}
	var cancelled domain.Order
	dataInto(t, decode(t, resp), &cancelled)
	if cancelled.Status != domain.OrderCancelled {
		t.Fatalf("cancelled status: got %q", cancelled.Status)
	}
	if got := fetchProduct(t, e, sellerTok, p.ID).Stock; got != 4 {
		t.Fatalf("stock after cancel: want 4, got %d", got)
	}

	resp = do(t, e, jsonReq("POST", "/api/v1/orders/"+o.ID+"/cancel", "", buyerTok))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second cancel: want 409, got %d", resp.StatusCode)
	}
}

func TestCancelWindowClosesOnceProcessing(t *testing.T) {
	e := newEnv(t)
	buyer := seedUser(t, e, "buyer@tradepost.test", domain.RoleBuyer)
	seller := seedUser(t, e, "seller@tradepost.test", domain.RoleSeller)
	seedUser(t, e, "root@tradepost.test", domain.RoleAdmin)
	addr := seedAddress(t, e, buyer.ID)
	p := seedProduct(t, e, seller.ID, "Mixer", 30000, 10)

	buyerTok := login(t, e, "buyer@tradepost.test")
	admin := login(t, e, "root@tradepost.test")

	// confirmed orders are still cancellable
	a := placeOrder(t, e, buyerTok, addr.ID, p.ID, 1)
	resp := do(t, e, jsonReq("POST", "/api/v1/admin/orders/"+a.ID+"/status", `{"status":"confirmed"}`, admin))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm: want 200, got %d", resp.StatusCode)
	}
	resp = do(t, e, jsonReq("POST", "/api/v1/orders/"+a.ID+"/cancel", "", buyerTok))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel confirmed order: want 200, got %d", resp.StatusCode)
	}

	// once fulfilment starts the window is closed
	b := placeOrder(t, e, buyerTok, addr.ID, p.ID, 1)
	for _, next := range []string{"confirmed", "processing"} {
		resp = do(t, e, jsonReq("POST", "/api/v1/admin/orders/"+b.ID+"/status", `{"status":"`+next+`"}`, admin))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("advance to %s: want 200, got %d", next, resp.StatusCode)
		}
	}
	resp = do(t, e, jsonReq("POST", "/api/v1/orders/"+b.ID+"/cancel", "", buyerTok))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("cancel processing order: want 409, got %d", resp.StatusCode)
	}
}

func TestAdminStatusTransitions(t *testing.T) {
	e := newEnv(t)
	buyer := seedUser(t, e, "buyer@tradepost.test", domain.RoleBuyer)
	seller := seedUser(t, e, "seller@tradepost.test", domain.RoleSeller)
	seedUser(t, e, "root@tradepost.test", domain.RoleAdmin)
	addr := seedAddress(t, e, buyer.ID)
	p := seedProduct(t, e, seller.ID, "Cables", 900, 100)

	buyerTok := login(t, e, "buyer@tradepost.test")
	admin := login(t, e, "root@tradepost.test")
	o := placeOrder(t, e, buyerTok, addr.ID, p.ID, 2)

	// skipping ahead is refused
	resp := do(t, e, jsonReq("POST", "/api/v1/admin/orders/"+o.ID+"/status", `{"status":"shipped"}`, admin))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("pending->shipped: want 409, got %d", resp.StatusCode)
	}

	// cancellation is not reachable through the status endpoint
	resp = do(t, e, jsonReq("POST", "/api/v1/admin/orders/"+o.ID+"/status", `{"status":"cancelled"}`, admin))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status endpoint cancel: want 409, got %d", resp.StatusCode)
	}

	for _, next := range []string{"confirmed", "processing", "shipped", "delivered"} {
		resp = do(t, e, jsonReq("POST", "/api/v1/admin/orders/"+o.ID+"/status", `{"status":"`+next+`"}`, admin))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("advance to %s: want 200, got %d", next, resp.StatusCode)
		}
		var got domain.Order
		dataInto(t, decode(t, resp), &got)
		if got.Status != next {
			t.Fatalf("status after advance: want %s, got %s", next, got.Status)
		}
	}

	// delivered is terminal
	resp = do(t, e, jsonReq("POST", "/api/v1/admin/orders/"+o.ID+"/status", `{"status":"processing"}`, admin))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("delivered->processing: want 409, got %d", resp.StatusCode)
	}
}

func TestOrderListsMineAndSold(t *testing.T) {
	e := newEnv(t)
	buyer := seedUser(t, e, "buyer@tradepost.test", domain.RoleBuyer)
	sellerA := seedUser(t, e, "vinyl@tradepost.test", domain.RoleSeller)
	sellerB := seedUser(t, e, "tapes@tradepost.test", domain.RoleSeller)
	addr := seedAddress(t, e, buyer.ID)
	pa := seedProduct(t, e, sellerA.ID, "LP Crate", 4000, 10)
	pb := seedProduct(t, e, sellerB.ID, "Tape Deck", 6000, 10)

	buyerTok := login(t, e, "buyer@tradepost.test")
	placeOrder(t, e, buyerTok, addr.ID, pa.ID, 1)
	placeOrder(t, e, buyerTok, addr.ID, pb.ID, 1)

	resp := do(t, e, jsonReq("GET", "/api/v1/orders", "", buyerTok))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list mine: want 200, got %d", resp.StatusCode)
	}
	var mine []domain.Order
	dataInto(t, decode(t, resp), &mine)
	if len(mine) != 2 {
		t.Fatalf("list mine: want 2 orders, got %d", len(mine))
	}

	// each seller only sees orders that carry their items
	tokA := login(t, e, "vinyl@tradepost.test")
	resp = do(t, e, jsonReq("GET", "/api/v1/orders/sold", "", tokA))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list sold: want 200, got %d", resp.StatusCode)
	}
	var sold []domain.Order
	dataInto(t, decode(t, resp), &sold)
	if len(sold) != 1 {
		t.Fatalf("seller A sold: want 1 order, got %d", len(sold))
	}

	// buyers have no sold view
	resp = do(t, e, jsonReq("GET", "/api/v1/orders/sold", "", buyerTok))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("buyer sold view: want 403, got %d", resp.StatusCode)
	}
}
