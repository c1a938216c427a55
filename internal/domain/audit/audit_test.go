package audit

import "testing"

func TestBuildFilter(t *testing.T) {
	where, args := buildFilter("t1", Filter{})
	if where != "tenant_id = $1" || len(args) != 1 {
		t.Fatalf("unexpected base filter %q %v", where, args)
	}

	where, args = buildFilter("t1", Filter{Action: "yearend.result.confirm", EntityID: "r1"})
	if where != "tenant_id = $1 AND action = $2 AND entity_id = $3" {
		t.Fatalf("unexpected filter %q", where)
	}
	if len(args) != 3 || args[1] != "yearend.result.confirm" || args[2] != "r1" {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestMarshalOptional(t *testing.T) {
	payload, err := marshalOptional(nil)
	if err != nil || payload != nil {
		t.Fatalf("expected nil payload, got %s %v", payload, err)
	}
	payload, err = marshalOptional(map[string]string{"status": "paid"})
	if err != nil {
		t.Fatal(err)
	}
	if string(payload) != `{"status":"paid"}` {
		t.Fatalf("unexpected payload %s", payload)
	}
}
