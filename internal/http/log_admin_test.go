package handlers_test

import (
	"net/http"
	"testing"

	"tradepost/internal/domain"
)

func TestAdminAccountActionsAudited(t *testing.T) {
	e := newEnv(t)
	buyer := seedUser(t, e, "target@tradepost.test", domain.RoleBuyer)
	other := seedUser(t, e, "root2@tradepost.test", domain.RoleAdmin)
	seedUser(t, e, "root@tradepost.test", domain.RoleAdmin)
	admin := login(t, e, "root@tradepost.test")

	entries := captureLogs(t, func() {
		resp := do(t, e, jsonReq("POST", "/api/v1/admin/users/"+buyer.ID+"/suspend", "", admin))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("suspend: want 200, got %d", resp.StatusCode)
		}
		resp = do(t, e, jsonReq("POST", "/api/v1/admin/users/"+buyer.ID+"/restore", "", admin))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("restore: want 200, got %d", resp.StatusCode)
		}
		resp = do(t, e, jsonReq("POST", "/api/v1/admin/users/"+other.ID+"/suspend", "", admin))
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("suspend admin: want 403, got %d", resp.StatusCode)
		}
	})

	suspend := findAction(entries, "admin.suspend")
	if suspend == nil || suspend.Level != "audit" || suspend.Fields["target"] != buyer.ID {
		t.Fatalf("admin.suspend audit entry wrong: %+v", entries)
	}
	if restore := findAction(entries, "admin.restore"); restore == nil || restore.Level != "audit" {
		t.Fatalf("admin.restore audit entry missing: %+v", entries)
	}
	if denied := findAction(entries, "admin.suspend.denied"); denied == nil || denied.Level != "warn" {
		t.Fatalf("admin.suspend.denied warn entry missing: %+v", entries)
	}
}

func TestCommerceTrailAudited(t *testing.T) {
	e := newEnv(t)
	stubGateway(t, e)
	buyer := seedUser(t, e, "buyer@tradepost.test", domain.RoleBuyer)
	seller := seedUser(t, e, "seller@tradepost.test", domain.RoleSeller)
	addr := seedAddress(t, e, buyer.ID)
	p := seedProduct(t, e, seller.ID, "Console", 15000, 5)
	buyerTok := login(t, e, "buyer@tradepost.test")

	var orderID string
	entries := captureLogs(t, func() {
		o := placeOrder(t, e, buyerTok, addr.ID, p.ID, 2)
		orderID = o.ID
		out := initPayment(t, e, buyerTok, o.ID)

		// tampered delivery, then a mismatched one, then the real one
		body := successEvent(out.Payment.GatewayRef, o.TotalCents, o.Currency)
		if resp := postWebhook(t, e, body, "bad-signature"); resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("tampered webhook: want 401, got %d", resp.StatusCode)
		}
		if applied := webhookApplied(t, postSignedWebhook(t, e, successEvent(out.Payment.GatewayRef, 1, o.Currency))); applied {
			t.Fatal("mismatched webhook must not apply")
		}
		if applied := webhookApplied(t, postSignedWebhook(t, e, body)); !applied {
			t.Fatal("genuine webhook must apply")
		}
	})

	place := findAction(entries, "order.place")
	if place == nil || place.Level != "audit" || place.Fields["order_id"] != orderID {
		t.Fatalf("order.place audit entry wrong: %+v", entries)
	}
	if place.Fields["total_cents"] != float64(30000) {
		t.Fatalf("order.place must record the total, got %+v", place.Fields)
	}
	if init := findAction(entries, "payment.init"); init == nil || init.Level != "audit" {
		t.Fatalf("payment.init audit entry missing: %+v", entries)
	}
	if sig := findAction(entries, "webhook.signature.invalid"); sig == nil || sig.Level != "warn" {
		t.Fatalf("webhook.signature.invalid warn entry missing: %+v", entries)
	}
	if mm := findAction(entries, "webhook.amount.mismatch"); mm == nil || mm.Level != "warn" {
		t.Fatalf("webhook.amount.mismatch warn entry missing: %+v", entries)
	}
	hook := findAction(entries, "webhook.payment")
	if hook == nil || hook.Level != "audit" {
		t.Fatalf("webhook.payment audit entry missing: %+v", entries)
	}
	if hook.Fields["applied"] != true {
		t.Fatalf("webhook.payment must record applied, got %+v", hook.Fields)
	}
}

func TestOrdersReportIsSpreadsheet(t *testing.T) {
	e := newEnv(t)
	buyer := seedUser(t, e, "buyer@tradepost.test", domain.RoleBuyer)
	seller := seedUser(t, e, "seller@tradepost.test", domain.RoleSeller)
	seedUser(t, e, "root@tradepost.test", domain.RoleAdmin)
	addr := seedAddress(t, e, buyer.ID)
	p := seedProduct(t, e, seller.ID, "Pedalboard", 9000, 3)

	buyerTok := login(t, e, "buyer@tradepost.test")
	placeOrder(t, e, buyerTok, addr.ID, p.ID, 1)

	admin := login(t, e, "root@tradepost.test")
	resp := do(t, e, jsonReq("GET", "/api/v1/admin/reports/orders.xlsx", "", admin))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("orders report: want 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("report content type: got %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); cd == "" {
		t.Fatal("report must be served as an attachment")
	}

	buf := make([]byte, 2)
	if _, err := resp.Body.Read(buf); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	// xlsx files are zip archives
	if string(buf) != "PK" {
		t.Fatalf("report body is not a spreadsheet, starts with %q", buf)
	}
}
