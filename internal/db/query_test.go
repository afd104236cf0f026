package db

import (
	"context"
	"reflect"
	"testing"
)

func TestWhere_Empty(t *testing.T) {
	var w Where
	clause, args := w.SQL()
	if clause != "" || len(args) != 0 {
		t.Errorf("empty Where = %q %v", clause, args)
	}
}

func TestWhere_Placeholders(t *testing.T) {
	var w Where
	w.Add("organization_id = ?", int64(7)).
		Add("is_active").
		AddIf(false, "role = ?", "admin").
		AddIf(true, "nickname ILIKE ?", Contains("bo")).
		In("role", []string{"owner", "admin"}).
		In("role", nil).
		Add("created_at BETWEEN ? AND ?", "a", "b")

	clause, args := w.SQL()
	want := " WHERE organization_id = $1 AND is_active AND nickname ILIKE $2 AND role IN ($3, $4) AND created_at BETWEEN $5 AND $6"
	if clause != want {
		t.Errorf("clause =\n%q\nwant\n%q", clause, want)
	}
	wantArgs := []any{int64(7), "%bo%", "owner", "admin", "a", "b"}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Errorf("args = %v, want %v", args, wantArgs)
	}
}

func TestContains_Escapes(t *testing.T) {
	testCases := map[string]string{
		"acme":  "%acme%",
		"50%":   `%50\%%`,
		"a_b":   `%a\_b%`,
		`back\`: `%back\\%`,
		"":      "%%",
	}
	for in, want := range testCases {
		if got := Contains(in); got != want {
			t.Errorf("Contains(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConn_Fallback(t *testing.T) {
	if got := Conn(context.Background(), nil); got != nil {
		t.Errorf("Conn without tx = %v, want fallback", got)
	}
}
