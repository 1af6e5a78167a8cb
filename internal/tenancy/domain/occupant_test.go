package domain

import (
	"slices"
	"testing"
)

func TestOccupantProfileRelationships(t *testing.T) {
	var profile OccupantProfile

	profile.AddRelationship(Relationship{OwnerID: "o1", PropertyID: "p2", UnitID: "unit-a"})
	profile.AddRelationship(Relationship{OwnerID: "o1", PropertyID: "p1", UnitID: "unit-b"})
	if !slices.Equal(profile.Properties(), []string{"p1", "p2"}) {
		t.Fatalf("unexpected properties: %v", profile.Properties())
	}
	if !profile.HasProperty("p1") || profile.HasProperty("p3") {
		t.Fatal("unexpected membership answers")
	}

	// Re-adding a property replaces the stale record.
	profile.AddRelationship(Relationship{OwnerID: "o1", PropertyID: "p1", UnitID: "unit-c"})
	if len(profile.Relationships) != 2 {
		t.Fatalf("expected 2 relationships, got %d", len(profile.Relationships))
	}
	if profile.Relationships[0].UnitID != "unit-c" {
		t.Fatalf("expected p1 unit to be replaced, got %+v", profile.Relationships[0])
	}

	if !profile.RemoveRelationship("p1") {
		t.Fatal("expected removal to report true")
	}
	if profile.RemoveRelationship("p1") {
		t.Fatal("expected repeated removal to report false")
	}
	if !slices.Equal(profile.Properties(), []string{"p2"}) {
		t.Fatalf("unexpected properties after removal: %v", profile.Properties())
	}
}
