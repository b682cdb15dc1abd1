package jsoncodec

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/vango-dev/nodesync/pkg/state"
)

func TestDecodeWithoutTypeInfo(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want any
	}{
		{"null", `null`, nil},
		{"bool", `true`, true},
		{"number", `42`, float64(42)},
		{"string", `"hello"`, "hello"},
		{"padded", `  "x" `, "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeWithoutTypeInfo(json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeStructuredValues(t *testing.T) {
	got, err := DecodeWithoutTypeInfo(json.RawMessage(`{"a":[1,"b"]}`))
	if err != nil {
		t.Fatal(err)
	}
	obj, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("got %T, want map", got)
	}
	arr, ok := obj["a"].([]any)
	if !ok || len(arr) != 2 || arr[0] != float64(1) || arr[1] != "b" {
		t.Errorf("a = %#v", obj["a"])
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, raw := range []string{``, `{`, `tru`, `   `} {
		if _, err := DecodeWithoutTypeInfo(json.RawMessage(raw)); !errors.Is(err, ErrMalformed) {
			t.Errorf("%q: err = %v, want ErrMalformed", raw, err)
		}
	}
}

func TestNodeReference(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		wantID int
		wantOK bool
	}{
		{"reference", map[string]any{"nodeId": float64(7)}, 7, true},
		{"extra keys", map[string]any{"nodeId": float64(7), "x": 1}, 7, true},
		{"fractional", map[string]any{"nodeId": 1.5}, 0, false},
		{"negative", map[string]any{"nodeId": float64(-1)}, 0, false},
		{"string id", map[string]any{"nodeId": "7"}, 0, false},
		{"no key", map[string]any{"id": float64(7)}, 0, false},
		{"not object", "nodeId", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := NodeReference(tt.value)
			if id != tt.wantID || ok != tt.wantOK {
				t.Errorf("NodeReference() = (%d, %v), want (%d, %v)", id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestEncodeNodeReference(t *testing.T) {
	n := state.NewNode(state.KindElementProperties)

	raw, err := EncodeWithoutTypeInfo(n)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeWithoutTypeInfo(raw)
	if err != nil {
		t.Fatal(err)
	}
	if id, ok := NodeReference(decoded); !ok || id != n.ID() {
		t.Errorf("round trip = (%d, %v), want (%d, true)", id, ok, n.ID())
	}
}

func TestEncodeWithTypeInfo(t *testing.T) {
	n := state.NewNode(state.KindElementProperties)

	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"string", "a", `"a"`},
		{"int", 3, `3`},
		{"nil", nil, `null`},
		{"node", n, `[0,` + itoa(n.ID()) + `]`},
		{"array", []any{"a", 1}, `[1,["a",1]]`},
		{"object", map[string]any{"b": true}, `{"b":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := EncodeWithTypeInfo(tt.value)
			if err != nil {
				t.Fatalf("error: %v", err)
			}
			if string(raw) != tt.want {
				t.Errorf("got %s, want %s", raw, tt.want)
			}
		})
	}
}

func TestEncodeUnsupported(t *testing.T) {
	for _, v := range []any{struct{}{}, make(chan int), math.NaN(), map[string]any{"f": func() {}}} {
		if _, err := EncodeWithoutTypeInfo(v); !errors.Is(err, ErrUnsupportedType) {
			t.Errorf("%T: err = %v, want ErrUnsupportedType", v, err)
		}
		if CanEncode(v) {
			t.Errorf("CanEncode(%T) = true", v)
		}
	}
}

func itoa(i int) string {
	b, _ := json.Marshal(i)
	return string(b)
}

func TestDecodeWithTypeInfo(t *testing.T) {
	n := state.NewNode(state.KindElementProperties)
	raw, err := EncodeWithTypeInfo(map[string]any{
		"ref":  n,
		"list": []any{"a", n},
		"num":  2,
	})
	if err != nil {
		t.Fatal(err)
	}

	var resolved []int
	got, err := DecodeWithTypeInfo(raw, func(id int) (any, error) {
		resolved = append(resolved, id)
		return n, nil
	})
	if err != nil {
		t.Fatalf("DecodeWithTypeInfo: %v", err)
	}
	obj := got.(map[string]any)
	if obj["ref"] != n {
		t.Errorf("ref = %v, want the node", obj["ref"])
	}
	list, ok := obj["list"].([]any)
	if !ok || len(list) != 2 || list[0] != "a" || list[1] != n {
		t.Errorf("list = %#v", obj["list"])
	}
	if obj["num"] != float64(2) {
		t.Errorf("num = %#v, want 2", obj["num"])
	}
	if len(resolved) != 2 || resolved[0] != n.ID() {
		t.Errorf("resolved = %v", resolved)
	}
}

func TestDecodeWithTypeInfoMalformed(t *testing.T) {
	resolve := func(int) (any, error) { return nil, nil }
	for _, raw := range []string{`["a","b"]`, `[7,1]`, `[1,"x"]`, `[0,1.5]`, `[1,2,3]`} {
		if _, err := DecodeWithTypeInfo(json.RawMessage(raw), resolve); !errors.Is(err, ErrMalformed) {
			t.Errorf("%s: err = %v, want ErrMalformed", raw, err)
		}
	}
}
