package datatree

import (
	"encoding/json"
	"testing"
)

func TestMergeFillsMissingKeys(t *testing.T) {
	cached := Map(map[string]Value{
		"a": Number(99),
	})
	defaults := Map(map[string]Value{
		"a": Number(1),
		"b": Number(2),
	})

	merged := Merge(cached, defaults)

	a, ok := merged.Field("a")
	if !ok {
		t.Fatal("expected key a to be present")
	}
	if n, _ := a.AsNumber(); n != 99 {
		t.Fatalf("expected cached value 99 to win, got %v", n)
	}
	b, ok := merged.Field("b")
	if !ok {
		t.Fatal("expected key b to be filled from defaults")
	}
	if n, _ := b.AsNumber(); n != 2 {
		t.Fatalf("expected default 2, got %v", n)
	}
}

func TestMergeRecursesIntoNestedMaps(t *testing.T) {
	cached := Map(map[string]Value{
		"stats": Map(map[string]Value{
			"coins": Number(50),
		}),
	})
	defaults := Map(map[string]Value{
		"stats": Map(map[string]Value{
			"coins": Number(0),
			"gems":  Number(5),
		}),
		"name": String("new player"),
	})

	merged := Merge(cached, defaults)

	stats, _ := merged.Field("stats")
	coins, _ := stats.Field("coins")
	if n, _ := coins.AsNumber(); n != 50 {
		t.Fatalf("expected nested cached value to win, got %v", n)
	}
	gems, ok := stats.Field("gems")
	if !ok {
		t.Fatal("expected nested default to be filled")
	}
	if n, _ := gems.AsNumber(); n != 5 {
		t.Fatalf("expected nested default 5, got %v", n)
	}
	if _, ok := merged.Field("name"); !ok {
		t.Fatal("expected top-level default to be filled")
	}
}

func TestMergeNonMapValueWins(t *testing.T) {
	merged := Merge(Number(7), Map(map[string]Value{"a": Number(1)}))
	if n, ok := merged.AsNumber(); !ok || n != 7 {
		t.Fatalf("expected scalar value to win merge, got %v", merged.Kind())
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	cached := Map(map[string]Value{"a": Number(99)})
	defaults := Map(map[string]Value{"a": Number(1), "b": Number(2)})

	once := Merge(cached, defaults)
	twice := Merge(once, defaults)
	if !Equal(once, twice) {
		t.Fatal("expected merge to be idempotent")
	}
}

func TestEqual(t *testing.T) {
	cases := []struct {
		name string
		a, b Value
		want bool
	}{
		{"nil values", Nil(), Nil(), true},
		{"equal numbers", Number(3), Number(3), true},
		{"different numbers", Number(3), Number(4), false},
		{"kind mismatch", Number(3), String("3"), false},
		{"equal maps", Map(map[string]Value{"x": Bool(true)}), Map(map[string]Value{"x": Bool(true)}), true},
		{"map key mismatch", Map(map[string]Value{"x": Bool(true)}), Map(map[string]Value{"y": Bool(true)}), false},
		{"equal lists", List(Number(1), Number(2)), List(Number(1), Number(2)), true},
		{"list length mismatch", List(Number(1)), List(Number(1), Number(2)), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Equal(tc.a, tc.b); got != tc.want {
				t.Fatalf("Equal = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCloneIsIndependent(t *testing.T) {
	original := Map(map[string]Value{
		"inner": Map(map[string]Value{"n": Number(1)}),
	})
	clone := original.Clone()
	if !Equal(original, clone) {
		t.Fatal("expected clone to equal original")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	value := Map(map[string]Value{
		"name":  String("Player1"),
		"coins": Number(50),
		"flags": Map(map[string]Value{"beta": Bool(true)}),
		"log":   List(String("joined"), String("saved")),
		"void":  Nil(),
	})

	payload, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal value: %v", err)
	}

	var decoded Value
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal value: %v", err)
	}
	if !Equal(value, decoded) {
		t.Fatalf("expected round trip to preserve value, got %s", payload)
	}
}

func TestFieldNamesSorted(t *testing.T) {
	value := Map(map[string]Value{"b": Nil(), "a": Nil(), "c": Nil()})
	names := value.FieldNames()
	if len(names) != 3 || names[0] != "a" || names[1] != "b" || names[2] != "c" {
		t.Fatalf("expected sorted field names, got %v", names)
	}
}
