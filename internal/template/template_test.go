package template

import "testing"

func TestLoadEmptyRootUsesBuiltinsSortedByID(t *testing.T) {
	s, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(s.byID) != 6 {
		t.Fatalf("Load() returned %d templates, want 6 builtins", len(s.byID))
	}
	for i := 1; i < len(s.byID); i++ {
		if s.byID[i-1].ID >= s.byID[i].ID {
			t.Fatalf("templates not sorted by id: %q before %q", s.byID[i-1].ID, s.byID[i].ID)
		}
	}
}

func TestLoadNonexistentRootFails(t *testing.T) {
	if _, err := Load("/definitely/does/not/exist/netcapd-templates"); err == nil {
		t.Fatal("Load() with a missing root returned no error")
	}
}

func TestCandidatesMatchesByFilter(t *testing.T) {
	s, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	refs := s.Candidates("show version")
	if len(refs) == 0 {
		t.Fatal("Candidates(\"show version\") returned no matches")
	}
	for _, r := range refs {
		if r.Vendor == "" {
			t.Errorf("candidate %q has empty vendor", r.ID)
		}
	}

	if refs := s.Candidates("show inventory"); len(refs) != 1 || refs[0].ID != "cisco_ios_show_inventory" {
		t.Errorf("Candidates(\"show inventory\") = %v, want only cisco_ios_show_inventory", refs)
	}

	if refs := s.Candidates("reload"); len(refs) != 0 {
		t.Errorf("Candidates(\"reload\") = %v, want no matches", refs)
	}
}

func TestGetResolvesKnownAndUnknownIDs(t *testing.T) {
	s, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	def, ok := s.Get("generic_show_version")
	if !ok || def.Vendor != "generic" {
		t.Fatalf("Get(\"generic_show_version\") = %+v, %v", def, ok)
	}

	if _, ok := s.Get("nonexistent_template"); ok {
		t.Error("Get() for an unknown id reported found")
	}
}

func TestCiscoInventoryTemplateIsMultipleRecord(t *testing.T) {
	s, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	def, ok := s.Get("cisco_ios_show_inventory")
	if !ok {
		t.Fatal("Get(\"cisco_ios_show_inventory\") not found")
	}
	if !def.Multiple {
		t.Error("cisco_ios_show_inventory.Multiple = false, want true")
	}
	var requiredCount int
	for _, f := range def.Fields {
		if f.Required {
			requiredCount++
		}
	}
	if requiredCount == 0 {
		t.Error("cisco_ios_show_inventory has no required field")
	}
}
