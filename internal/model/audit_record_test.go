package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestAuditRecordJSONRoundTrip(t *testing.T) {
	poolID := uint64(3)
	original := AuditRecord{
		Seq:            42,
		Kind:           AuditSwap,
		PoolID:         &poolID,
		Account:        "alice",
		TokenIn:        "dai",
		AmountIn:       "10000000000000000000",
		TokenOut:       "eth",
		AmountOut:      "18140486474198681518",
		Fee:            "25000000000000000",
		AdminFee:       "5000000000000000",
		ExchangeShares: "20455707776713916695",
		ReferralShares: "2272856419634879632",
		Referral:       "ref",
		Timestamp:      1700000000,
		RecordedAt:     "2024-01-01T00:00:00Z",
	}

	b, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded AuditRecord
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if !reflect.DeepEqual(original, decoded) {
		t.Fatalf("round-trip mismatch: %+v != %+v", original, decoded)
	}
	if id, ok := decoded.Pool(); !ok || id != 3 {
		t.Fatalf("pool id = %d, %v", id, ok)
	}
}

func TestAuditRecordWithoutPool(t *testing.T) {
	var decoded AuditRecord
	if err := json.Unmarshal([]byte(`{"seq":1,"kind":"deposit","account":"bob","token_in":"dai","amount_in":"5","timestamp":0,"recorded_at":""}`), &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if _, ok := decoded.Pool(); ok {
		t.Fatalf("deposit should not carry a pool id")
	}
	if decoded.AmountIn != "5" {
		t.Fatalf("amount_in = %q", decoded.AmountIn)
	}
}
