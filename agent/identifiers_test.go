package agent

import (
	"reflect"
	"testing"
)

func TestExtractMissingIdentifier(t *testing.T) {
	cases := []struct {
		errMsg string
		want   *MissingIdentifier
	}{
		{
			errMsg: `Binder Error: Table "sales" does not have a column named "custmer"`,
			want:   &MissingIdentifier{Type: "column", Name: "custmer"},
		},
		{
			errMsg: `Binder Error: Referenced column "amount" not found in FROM clause!`,
			want:   &MissingIdentifier{Type: "column", Name: "amount"},
		},
		{
			errMsg: `Catalog Error: Referenced table "salez" not found`,
			want:   &MissingIdentifier{Type: "table", Name: "salez"},
		},
		{
			errMsg: "Parser Error: syntax error at or near SELECT",
			want:   nil,
		},
	}
	for _, tc := range cases {
		got := ExtractMissingIdentifier(tc.errMsg)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("ExtractMissingIdentifier(%q) = %+v, want %+v", tc.errMsg, got, tc.want)
		}
	}
}

func TestSuggestIdentifiers_Columns(t *testing.T) {
	got := SuggestIdentifiers("amount", "column", testSchema, 5)
	if len(got) != 1 || got[0] != "total_amount" {
		t.Errorf("SuggestIdentifiers(amount) = %v, want [total_amount]", got)
	}
}

func TestSuggestIdentifiers_Tables(t *testing.T) {
	got := SuggestIdentifiers("inv", "table", testSchema, 5)
	if len(got) != 1 || got[0] != "inventory" {
		t.Errorf("SuggestIdentifiers(inv) = %v, want [inventory]", got)
	}
}

func TestSuggestIdentifiers_LimitAndNoMatch(t *testing.T) {
	if got := SuggestIdentifiers("zzz", "column", testSchema, 5); len(got) != 0 {
		t.Errorf("no-match case returned %v", got)
	}
	schema := "t(a_x INT, b_x INT, c_x INT, d_x INT, e_x INT, f_x INT)"
	if got := SuggestIdentifiers("_x", "column", schema, 3); len(got) != 3 {
		t.Errorf("limit not applied: %v", got)
	}
}
