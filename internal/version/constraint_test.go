package version

import "testing"

func mustParse(t *testing.T, s string) *Version {
	t.Helper()
	v, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return v
}

func TestConstraintSatisfies(t *testing.T) {
	tests := []struct {
		constraint string
		version    string
		want       bool
	}{
		{">=1.2", "1.2.13", true},
		{">=1.2", "1.1.0", false},
		{">=1.2, <2.0", "1.9.9", true},
		{">=1.2, <2.0", "2.0.0", false},
		{"=1.2.11", "1.2.11", true},
		{"=1.2.11", "1.2.12", false},
		{"!=1.2.11", "1.2.12", true},
		{"~>1.4.2", "1.4.9", true},
		{"~>1.4.2", "1.5.0", false},
		{"~>1.4", "1.9.0", true},
		{"~>1.4", "2.0.0", false},
		{"compatible-with 2.1.0", "2.9.0", true},
		{"compatible-with 2.1.0", "3.0.0", false},
		{"compatible-with 0.3.0", "0.3.9", true},
		{"compatible-with 0.3.0", "0.4.0", false},
	}

	for _, tt := range tests {
		t.Run(tt.constraint+"_"+tt.version, func(t *testing.T) {
			c, err := ParseConstraint(tt.constraint)
			if err != nil {
				t.Fatalf("ParseConstraint(%q): %v", tt.constraint, err)
			}
			v := mustParse(t, tt.version)
			if got := c.Satisfies(v); got != tt.want {
				t.Errorf("Satisfies(%q, %q) = %v, want %v", tt.constraint, tt.version, got, tt.want)
			}
		})
	}
}

func TestConstraintEqualIsStructural(t *testing.T) {
	a, _ := ParseConstraint(">=1.2")
	b, _ := ParseConstraint(">=1.2")
	c, _ := ParseConstraint(">=1.2.0")

	if !a.Equal(b) {
		t.Error("identical constraint text should be structurally equal")
	}
	if a.Equal(c) {
		t.Error("different raw version tokens should not be structurally equal even if semantically equivalent")
	}
}

func TestEmptyConstraintSatisfiesEverything(t *testing.T) {
	c, err := ParseConstraint("")
	if err != nil {
		t.Fatalf("ParseConstraint(\"\"): %v", err)
	}
	if !c.Satisfies(mustParse(t, "0.0.1")) {
		t.Error("empty constraint should satisfy any version")
	}
}

func TestIntersectUnsatisfiable(t *testing.T) {
	a, _ := ParseConstraint("<2")
	b, _ := ParseConstraint(">=2")
	merged := Intersect(a, b)

	for _, vs := range []string{"1.9.9", "2.0.0", "2.5.0"} {
		if merged.Satisfies(mustParse(t, vs)) {
			t.Errorf("version %s should not satisfy the intersection of <2 and >=2", vs)
		}
	}
}

func TestSorted(t *testing.T) {
	vs := []*Version{mustParse(t, "1.2.13"), mustParse(t, "1.2.11"), mustParse(t, "1.0.0")}
	sorted := Sorted(vs)
	want := []string{"1.0.0", "1.2.11", "1.2.13"}
	for i, w := range want {
		if sorted[i].String() != w {
			t.Errorf("Sorted()[%d] = %s, want %s", i, sorted[i].String(), w)
		}
	}
}
