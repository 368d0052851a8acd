package core

import "testing"

func TestTransactionRecordValidate(t *testing.T) {
	good := TransactionRecord{State: "Delhi", Year: 2022, Quarter: 1, TransactionType: "Recharge", Count: 10, Amount: 1.5}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []struct {
		rec  TransactionRecord
		want error
	}{
		{TransactionRecord{State: " ", Year: 2022, Quarter: 1, TransactionType: "x"}, ErrEmptyState},
		{TransactionRecord{State: "a", Year: 0, Quarter: 1, TransactionType: "x"}, ErrInvalidYear},
		{TransactionRecord{State: "a", Year: 2022, Quarter: 5, TransactionType: "x"}, ErrInvalidQuarter},
		{TransactionRecord{State: "a", Year: 2022, Quarter: 0, TransactionType: "x"}, ErrInvalidQuarter},
		{TransactionRecord{State: "a", Year: 2022, Quarter: 2, TransactionType: ""}, ErrEmptyType},
		{TransactionRecord{State: "a", Year: 2022, Quarter: 2, TransactionType: "x", Count: -1}, ErrNegativeCount},
		{TransactionRecord{State: "a", Year: 2022, Quarter: 2, TransactionType: "x", Amount: -0.01}, ErrNegativeAmount},
	}
	for i, tc := range bads {
		if err := tc.rec.Validate(); err != tc.want {
			t.Fatalf("case %d: got %v, want %v", i, err, tc.want)
		}
	}
}

func TestFilterSelectionKey(t *testing.T) {
	a := FilterSelection{Years: []int{2022, 2021, 2021}, States: []string{"Goa", "Delhi"}}
	b := FilterSelection{Years: []int{2021, 2022}, States: []string{"Delhi", "Goa"}}
	if a.Key() != b.Key() {
		t.Fatalf("equivalent selections produced different keys: %q vs %q", a.Key(), b.Key())
	}

	all := FilterSelection{}
	none := FilterSelection{Years: []int{}}
	if all.Key() == none.Key() {
		t.Fatalf("all and none must differ, both %q", all.Key())
	}
	if !all.AllSelected() || none.AllSelected() {
		t.Fatalf("AllSelected mismatch: all=%v none=%v", all.AllSelected(), none.AllSelected())
	}
}
