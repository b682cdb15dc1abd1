package filter

import (
	"errors"
	"testing"

	"github.com/vango-dev/nodesync/pkg/state"
)

func TestAllow(t *testing.T) {
	f := MustCompile(`key in ["name", "email"] || key.startsWith("address.")`)

	tests := []struct {
		key  string
		want bool
	}{
		{"name", true},
		{"email", true},
		{"address.city", true},
		{"address", false},
		{"password", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := f.Allow(tt.key); got != tt.want {
				t.Errorf("Allow(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestCompileRejectsInvalid(t *testing.T) {
	for _, expr := range []string{
		`key ==`,
		`key + "x"`,
		`unknown == "a"`,
	} {
		if _, err := Compile(expr); !errors.Is(err, ErrInvalidExpression) {
			t.Errorf("Compile(%q) err = %v, want ErrInvalidExpression", expr, err)
		}
	}
}

func TestUpdateFilterOnPropertyMap(t *testing.T) {
	el := state.NewElement("input")
	pm := el.PropertyMap()
	pm.SetUpdateFromClientFilter(MustCompile(`key.matches("^person\\.[a-z]+$")`).UpdateFilter())

	person, err := pm.ResolveModelMap("person")
	if err != nil {
		t.Fatal(err)
	}
	if got := person.AllowUpdateFromClient("name"); got != state.ExplicitlyAllowed {
		t.Errorf("person.name = %v, want ExplicitlyAllowed", got)
	}
	if got := pm.AllowUpdateFromClient("name"); got != state.ExplicitlyDisallowed {
		t.Errorf("name = %v, want ExplicitlyDisallowed", got)
	}
}

func TestString(t *testing.T) {
	if got := MustCompile(`true`).String(); got != "true" {
		t.Errorf("String() = %q, want true", got)
	}
}
