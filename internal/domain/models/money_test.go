package models

import (
	"encoding/json"
	"testing"
)

func TestMoneyString(t *testing.T) {
	cases := map[Money]string{
		0:       "0.00",
		5:       "0.05",
		250_00:  "250.00",
		1000_00: "1000.00",
		12_34:   "12.34",
		-7_50:   "-7.50",
	}
	for in, want := range cases {
		if got := in.String(); got != want {
			t.Errorf("Money(%d).String() = %q, want %q", int64(in), got, want)
		}
	}
}

func TestMoneyMarshalJSON(t *testing.T) {
	body, err := json.Marshal(struct {
		Budget Money `json:"budget"`
	}{Budget: 750_00})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(body) != `{"budget":750.00}` {
		t.Fatalf("unexpected json %s", body)
	}

	var decoded struct {
		Budget float64 `json:"budget"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("decode as float: %v", err)
	}
	if decoded.Budget != 750 {
		t.Fatalf("expected 750, got %v", decoded.Budget)
	}
}

func TestParseMoney(t *testing.T) {
	valid := map[string]Money{
		"250":    250_00,
		"250.5":  250_50,
		"250.05": 250_05,
		"0.99":   99,
		"-3.10":  -3_10,
	}
	for in, want := range valid {
		got, err := ParseMoney(in)
		if err != nil {
			t.Errorf("ParseMoney(%q) unexpected error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseMoney(%q) = %d, want %d", in, got, want)
		}
	}

	for _, in := range []string{"", ".5", "1.234", "abc", "1.x", "--1", "1.-5"} {
		if _, err := ParseMoney(in); err == nil {
			t.Errorf("ParseMoney(%q) expected error", in)
		}
	}
}

func TestMoneyUnmarshalJSON(t *testing.T) {
	var item Item
	if err := json.Unmarshal([]byte(`{"price": 99.90}`), &item); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if item.Price != 99_90 {
		t.Fatalf("expected 9990 cents, got %d", item.Price)
	}
}

func TestUserCanPurchaseAndSell(t *testing.T) {
	owner := int64(1)
	user := &User{ID: 1, Budget: 100_00}
	cheap := &Item{Price: 99_99}
	pricey := &Item{Price: 250_00, Owner: &owner}

	if !user.CanPurchase(cheap) {
		t.Error("expected user to afford cheap item")
	}
	if user.CanPurchase(pricey) {
		t.Error("expected user not to afford pricey item")
	}
	if !user.CanSell(pricey) {
		t.Error("expected owner to be able to sell")
	}
	if user.CanSell(cheap) {
		t.Error("expected unowned item not sellable")
	}
}
