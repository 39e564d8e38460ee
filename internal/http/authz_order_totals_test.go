package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"tradepost/internal/domain"
)

// Totals come from the catalog at order time. Price fields smuggled into the
// request body must not move a cent.
func TestOrderTotalsIgnoreClientPrices(t *testing.T) {
	e := newEnv(t)
	buyer := seedUser(t, e, "buyer@tradepost.test", domain.RoleBuyer)
	seller := seedUser(t, e, "seller@tradepost.test", domain.RoleSeller)
	addr := seedAddress(t, e, buyer.ID)
	p := seedProduct(t, e, seller.ID, "Preamp", 19900, 5)

	buyerTok := login(t, e, "buyer@tradepost.test")
	body := fmt.Sprintf(`{
		"address_id": %q,
		"total_cents": 1,
		"items": [{"product_id": %q, "qty": 2, "unit_cents": 1, "price_cents": 1}]
	}`, addr.ID, p.ID)
	resp := do(t, e, jsonReq("POST", "/api/v1/orders", body, buyerTok))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("place order: want 201, got %d", resp.StatusCode)
	}
	var o domain.Order
	dataInto(t, decode(t, resp), &o)
	if o.TotalCents != 2*19900 {
		t.Fatalf("total: want 39800, got %d", o.TotalCents)
	}
	if o.Items[0].UnitCents != 19900 {
		t.Fatalf("unit price: want 19900, got %d", o.Items[0].UnitCents)
	}

	// and the snapshot is immune to later price edits
	sellerTok := login(t, e, "seller@tradepost.test")
	resp = do(t, e, jsonReq("PUT", "/api/v1/products/"+p.ID, `{"price_cents":100}`, sellerTok))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reprice: want 200, got %d", resp.StatusCode)
	}
	resp = do(t, e, jsonReq("GET", "/api/v1/orders/"+o.ID, "", buyerTok))
	var again domain.Order
	dataInto(t, decode(t, resp), &again)
	if again.TotalCents != 39800 || again.Items[0].UnitCents != 19900 {
		t.Fatalf("order snapshot changed after reprice: %+v", again)
	}
}

func TestOrderVisibility(t *testing.T) {
	e := newEnv(t)
	buyer := seedUser(t, e, "buyer@tradepost.test", domain.RoleBuyer)
	seller := seedUser(t, e, "seller@tradepost.test", domain.RoleSeller)
	seedUser(t, e, "bystander@tradepost.test", domain.RoleSeller)
	seedUser(t, e, "root@tradepost.test", domain.RoleAdmin)
	addr := seedAddress(t, e, buyer.ID)
	p := seedProduct(t, e, seller.ID, "Headphones", 7500, 5)

	buyerTok := login(t, e, "buyer@tradepost.test")
	o := placeOrder(t, e, buyerTok, addr.ID, p.ID, 1)

	view := func(token string) int {
		resp := do(t, e, jsonReq("GET", "/api/v1/orders/"+o.ID, "", token))
		return resp.StatusCode
	}

	if got := view(buyerTok); got != http.StatusOK {
		t.Fatalf("buyer view: want 200, got %d", got)
	}
	if got := view(login(t, e, "seller@tradepost.test")); got != http.StatusOK {
		t.Fatalf("item seller view: want 200, got %d", got)
	}
	if got := view(login(t, e, "root@tradepost.test")); got != http.StatusOK {
		t.Fatalf("admin view: want 200, got %d", got)
	}
	// sellers without items in the order learn nothing, not even existence
	if got := view(login(t, e, "bystander@tradepost.test")); got != http.StatusNotFound {
		t.Fatalf("bystander view: want 404, got %d", got)
	}
	if got := view(""); got != http.StatusUnauthorized {
		t.Fatalf("anonymous view: want 401, got %d", got)
	}
}

func TestForeignOrderCancelHiddenAs404(t *testing.T) {
	e := newEnv(t)
	buyer := seedUser(t, e, "buyer@tradepost.test", domain.RoleBuyer)
	seller := seedUser(t, e, "seller@tradepost.test", domain.RoleSeller)
	seedUser(t, e, "rival@tradepost.test", domain.RoleBuyer)
	addr := seedAddress(t, e, buyer.ID)
	p := seedProduct(t, e, seller.ID, "Subwoofer", 22000, 2)

	buyerTok := login(t, e, "buyer@tradepost.test")
	o := placeOrder(t, e, buyerTok, addr.ID, p.ID, 1)

	rival := login(t, e, "rival@tradepost.test")
	resp := do(t, e, jsonReq("POST", "/api/v1/orders/"+o.ID+"/cancel", "", rival))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign cancel: want 404, got %d", resp.StatusCode)
	}
	// untouched
	if got := orderRow(t, e, o.ID).Status; got != domain.OrderPending {
		t.Fatalf("order after foreign cancel: want pending, got %q", got)
	}
}
