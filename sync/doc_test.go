package sync

import (
	"context"
	"strings"
	"testing"
)

func TestGenerateFieldDocumentation(t *testing.T) {
	resolver := NewMetadataResolver(newFakeMetadataService(), nil)
	cfg := SyncConfiguration{
		ListID:           "list-1",
		MappedAttributes: []string{"emailaddress1", "region", "new_territory", "mobilephone|@phone:44", "new_unknown", "region"},
	}
	doc, err := GenerateFieldDocumentation(context.Background(), cfg, resolver)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Rows) != 5 {
		t.Fatalf("Expected 5 rows but have %d", len(doc.Rows))
	}
	expected := []FieldDocRow{
		{AttributeName: "emailaddress1", AttributeType: "String", FieldName: "emailaddress1", Notes: "No display label, syncs as schema name"},
		{AttributeName: "region", AttributeType: "Picklist", FieldName: "Region", Notes: "Syncs the option label"},
		{AttributeName: "new_territory", AttributeType: "String", FieldName: "RegionTerritory", Notes: ""},
		{AttributeName: "mobilephone", AttributeType: "String", FieldName: "Mobile Phone", Notes: "Formats as E.164 phone number (default country code 44)"},
		{AttributeName: "new_unknown", AttributeType: "(unknown)", FieldName: "new_unknown", Notes: "Not a contact attribute | No display label, syncs as schema name"},
	}
	for i, e := range expected {
		have := doc.Rows[i]
		if have.AttributeName != e.AttributeName || have.AttributeType != e.AttributeType || have.FieldName != e.FieldName || have.Notes != e.Notes {
			t.Errorf("Expected row %d to be %+v but have %+v", i, e, have)
		}
	}

	csv, err := doc.FormatCSV()
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	if lines[0] != "# List: list-1" {
		t.Errorf("Expected list comment but have %q", lines[0])
	}
	if lines[1] != "Contact Attribute,Attribute Type,Subscriber Field,Mapping Notes" {
		t.Errorf("Expected headers but have %q", lines[1])
	}
	if lines[3] != "region,Picklist,Region,Syncs the option label" {
		t.Errorf("Expected region row but have %q", lines[3])
	}
	if len(lines) != 7 {
		t.Errorf("Expected 7 csv lines but have %d", len(lines))
	}
}
