package ident

import (
	"errors"
	"slices"
	"testing"
)

func TestSpecExamples(t *testing.T) {
	for tag, spec := range Specs() {
		t.Run(tag, func(t *testing.T) {
			if spec.Tag != tag {
				t.Errorf("Expected tag %q, got %q", tag, spec.Tag)
			}
			if !spec.Pattern.MatchString(spec.Valid) {
				t.Errorf("Valid example %q does not match %s", spec.Valid, spec.Pattern)
			}
			if spec.Pattern.MatchString(spec.Invalid) {
				t.Errorf("Invalid example %q matches %s", spec.Invalid, spec.Pattern)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		parse   func(string) (string, error)
		raw     string
		wantErr bool
	}{
		{"junction valid", parseString[Junction], "inbound-junction", false},
		{"junction uppercase", parseString[Junction], "Inbound", true},
		{"junction empty", parseString[Junction], "", true},
		{"processor valid", parseString[Processor], "filter1", false},
		{"processor dash", parseString[Processor], "filter-1", true},
		{"processor too long", parseString[Processor], "abcdefghijklmnopqrstu", true},
		{"profile digit start", parseString[Profile], "2cpu", false},
		{"profile dash start", parseString[Profile], "-minimal", true},
		{"resource dotted", parseString[Resource], "scratch.events.greenbox", false},
		{"resource slash", parseString[Resource], "stream/events", true},
		{"tenant valid", parseString[Tenant], "greenbox-dev", false},
		{"service underscore", parseString[Service], "a_b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.parse(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error for %q, got none", tt.raw)
				}
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("Expected *ValidationError, got %T", err)
				}
				if verr.Value != tt.raw {
					t.Errorf("Expected error to name %q, got %q", tt.raw, verr.Value)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.raw {
				t.Errorf("Expected round trip to %q, got %q", tt.raw, got)
			}
		})
	}
}

func parseString[K Kind](raw string) (string, error) {
	id, err := Parse[K](raw)
	return id.String(), err
}

func TestValidationErrorMessage(t *testing.T) {
	_, err := Parse[Junction]("Bad Junction")
	if err == nil {
		t.Fatal("Expected error")
	}
	want := "'Bad Junction' is not a valid junction identifier"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
	var verr *ValidationError
	if errors.As(err, &verr) && verr.Tag != "junction" {
		t.Errorf("Expected tag junction, got %q", verr.Tag)
	}
}

func TestCompareAndEquality(t *testing.T) {
	a := MustParse[Junction]("alpha")
	b := MustParse[Junction]("beta")
	a2 := MustParse[Junction]("alpha")

	if a != a2 {
		t.Error("Expected identifiers with equal raw values to be equal")
	}
	if a.Compare(b) >= 0 || b.Compare(a) <= 0 || a.Compare(a2) != 0 {
		t.Error("Expected ordering by raw value")
	}

	ids := []JunctionID{b, a}
	slices.SortFunc(ids, JunctionID.Compare)
	if ids[0] != a {
		t.Errorf("Expected %s first, got %s", a, ids[0])
	}
}

func TestUnmarshalText(t *testing.T) {
	var id TenantName
	if err := id.UnmarshalText([]byte("greenbox")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if id.String() != "greenbox" {
		t.Errorf("Expected greenbox, got %s", id)
	}
	if err := id.UnmarshalText([]byte("Greenbox")); err == nil {
		t.Error("Expected error for invalid tenant name")
	}
	if id.Tag() != "tenant" {
		t.Errorf("Expected tag tenant, got %s", id.Tag())
	}
}

func TestParseAll(t *testing.T) {
	ids, err := ParseAll[Parameter]([]string{"a", "b_c"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("Expected 2 identifiers, got %d", len(ids))
	}
	if _, err := ParseAll[Parameter]([]string{"a", "B"}); err == nil {
		t.Error("Expected error for invalid entry")
	}
}
