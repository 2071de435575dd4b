package cataloguesync

import (
	"testing"

	"github.com/always-cache/catalogue-sync/catalogue"
)

var teaCatalogue = &catalogue.Catalogue{
	Version: 7,
	Items:   map[string]int{"Tea": 500},
}

func TestEvaluateWithoutValidatorIsFull(t *testing.T) {
	result := Evaluate(teaCatalogue, "")
	if result.NotModified {
		t.Fatal("Absent validator produced a not-modified result")
	}
	if result.ETag != "7" {
		t.Fatalf("ETag is %q", result.ETag)
	}
	if result.Catalogue != teaCatalogue {
		t.Fatal("Full result does not carry the evaluated snapshot")
	}
}

func TestEvaluateMatchingValidatorIsNotModified(t *testing.T) {
	for _, validator := range []string{"7", `"7"`, `W/"7"`, ` "7" `} {
		result := Evaluate(teaCatalogue, validator)
		if !result.NotModified {
			t.Fatalf("Validator %q did not produce a not-modified result", validator)
		}
		if result.ETag != "7" {
			t.Fatalf("Validator %q gave ETag %q", validator, result.ETag)
		}
		if result.Catalogue != nil {
			t.Fatalf("Not-modified result carries a catalogue for %q", validator)
		}
	}
}

func TestEvaluateMismatchingValidatorIsFull(t *testing.T) {
	for _, validator := range []string{"3", `"3"`, "8", "0"} {
		result := Evaluate(teaCatalogue, validator)
		if result.NotModified {
			t.Fatalf("Validator %q produced a not-modified result", validator)
		}
		if result.ETag != "7" || result.Catalogue == nil {
			t.Fatalf("Validator %q gave %+v", validator, result)
		}
	}
}

func TestEvaluateMalformedValidatorIsTreatedAsAbsent(t *testing.T) {
	for _, validator := range []string{"garbage", `"`, "7x", "-7"} {
		result := Evaluate(teaCatalogue, validator)
		if result.NotModified {
			t.Fatalf("Malformed validator %q produced a not-modified result", validator)
		}
	}
}

func TestEvaluateListUsesFirstValidator(t *testing.T) {
	if result := Evaluate(teaCatalogue, `"7", "3"`); !result.NotModified {
		t.Fatal("First list member matching should give not-modified")
	}
	if result := Evaluate(teaCatalogue, `"3", "7"`); result.NotModified {
		t.Fatal("Only the first list member is evaluated")
	}
}
