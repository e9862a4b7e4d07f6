package schema_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/relabs-tech/promptlib/core/schema"
)

const (
	ref1 = `{ "type" : "string" ,
		      "$id" : "http://some_host.com/string.json"}`
	ref2 = `{ "$id" : "http://some_host.com/maxlength.json",
	 		  "maxLength" : 5 }`

	topLevel1 = `
	{ "$id" : "http://some_host.com/top1.json",
	  "allOf" : [
		{ "$ref" : "http://some_host.com/string.json" },
		{ "$ref" : "http://some_host.com/maxlength.json" }
		]
	}`
)

func TestValidateString(t *testing.T) {
	v, err := schema.NewValidator([]string{topLevel1}, []string{ref1, ref2})
	if err != nil {
		t.Fatalf("No error expected when creating validator, got %v", err)
	}

	schemaID := "http://some_host.com/top1.json"
	if err := v.ValidateString(`"short"`, schemaID); err != nil {
		t.Fatalf("expected to be valid, got %v", err)
	}
	if err := v.ValidateString(`"a very long string"`, schemaID); err == nil {
		t.Fatal("expected to be invalid")
	}
	if err := v.ValidateString(`"short"`, "http://some_host.com/unknown.json"); err == nil {
		t.Fatal("unknown schema accepted")
	}
}

func TestNewValidatorWithoutID(t *testing.T) {
	if _, err := schema.NewValidator([]string{`{"type":"string"}`}, nil); err == nil {
		t.Fatal("schema without $id accepted")
	}
}

func TestDefaultSchemas(t *testing.T) {
	v := schema.MustDefault()
	for _, id := range []string{schema.PromptSubmission, schema.StatusUpdate, schema.FeaturedUpdate, schema.RoleUpdate} {
		if !v.HasSchema(id) {
			t.Fatalf("%s schemaID is expected to be available", id)
		}
	}

	valid := `{"title":"Advent sermon outline","content":"Write a four week sermon series outline on hope.","category":"sermon-prep","tags":["advent","hope"]}`
	if err := v.ValidateString(valid, schema.PromptSubmission); err != nil {
		t.Fatalf("expected valid submission, got %v", err)
	}

	invalid := []string{
		`{"title":"Advent","content":"Write something long enough."}`,
		`{"title":"Advent","content":"Write something long enough.","category":"Sermon Prep"}`,
		`{"title":"Advent","content":"short","category":"worship"}`,
		`{"title":"Advent","content":"Write something long enough.","category":"worship","tags":[""]}`,
		`{"title":"Advent","content":"Write something long enough.","category":"worship","author":"me"}`,
	}
	for _, doc := range invalid {
		err := v.ValidateString(doc, schema.PromptSubmission)
		var verr *schema.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected validation error for %s, got %v", doc, err)
		}
		if len(verr.Details) == 0 || !strings.HasPrefix(verr.Error(), "the document is not valid") {
			t.Fatalf("unexpected error %v", verr)
		}
	}

	if err := v.ValidateBytes([]byte(`{"status":"approved"}`), schema.StatusUpdate); err != nil {
		t.Fatal(err)
	}
	if err := v.ValidateBytes([]byte(`{"status":"archived"}`), schema.StatusUpdate); err == nil {
		t.Fatal("unknown status accepted")
	}
	if err := v.ValidateBytes([]byte(`{"role":"owner"}`), schema.RoleUpdate); err == nil {
		t.Fatal("unknown role accepted")
	}
	if err := v.ValidateBytes([]byte(`{"featured":"yes"}`), schema.FeaturedUpdate); err == nil {
		t.Fatal("non boolean featured accepted")
	}
}
