package normalize

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRules(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "rules.yaml")

	content := `---
booking:
  totalPrice: [grand_total]
listing:
  rating: [stars]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to create rules file: %v", err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules() error = %v", err)
	}

	got := rules.Listing[ListingRating]
	if got[len(got)-1] != "stars" {
		t.Errorf("rating rules = %v, want stars appended", got)
	}
}

func TestLoadRulesWithTemplateVariables(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "rules.yaml")

	content := `---
booking:
  gateway: [{{TRIPSYNC_GATEWAY_FIELD}}]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to create rules file: %v", err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules() error = %v", err)
	}
	if len(rules.Booking[BookingGateway]) != len(DefaultRules().Booking[BookingGateway]) {
		t.Errorf("template placeholder should not add a rule, got %v", rules.Booking[BookingGateway])
	}
}

func TestLoadRulesFileNotFound(t *testing.T) {
	if _, err := LoadRules("/nonexistent/path/rules.yaml"); err == nil {
		t.Error("LoadRules() with non-existent file should return error")
	}
}

func TestLoadRulesUnknownField(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "rules.yaml")
	if err := os.WriteFile(path, []byte("listing:\n  colour: [color]\n"), 0o644); err != nil {
		t.Fatalf("Failed to create rules file: %v", err)
	}
	if _, err := LoadRules(path); err == nil {
		t.Error("LoadRules() should reject unknown fields")
	}
}
