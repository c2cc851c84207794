package storage

import (
	"testing"

	"homely-scraper/models"
)

func intp(n int) *int { return &n }

func floatp(f float64) *float64 { return &f }

func int64p(n int64) *int64 { return &n }

func TestMergeListingEmptyIncomingKeepsStored(t *testing.T) {
	existing := &models.Listing{
		ExternalID:   "11105399",
		URL:          "https://www.homely.com.au/homes/a/11105399",
		Address:      "105 Conrad Street St Albans VIC 3021",
		Postcode:     "3021",
		LowerPrice:   intp(770000),
		UpperPrice:   intp(820000),
		Bedrooms:     intp(3),
		Description:  "Original description",
		Latitude:     floatp(-37.73),
		OriginImages: []string{"https://img/1.jpg"},
		AgentID:      int64p(1),
	}
	incoming := &models.Listing{
		ExternalID: "11105399",
		AgentID:    int64p(2),
	}

	merged := MergeListing(existing, incoming)

	if merged.Address != existing.Address {
		t.Errorf("Address = %q; stored value should persist", merged.Address)
	}
	if merged.Postcode != "3021" {
		t.Errorf("Postcode = %q; stored value should persist", merged.Postcode)
	}
	if !eqIntp(merged.LowerPrice, existing.LowerPrice) || !eqIntp(merged.Bedrooms, existing.Bedrooms) {
		t.Error("numeric fields should persist when incoming is nil")
	}
	if merged.Description != "Original description" {
		t.Errorf("Description = %q; stored value should persist", merged.Description)
	}
	if merged.Latitude == nil || *merged.Latitude != -37.73 {
		t.Error("Latitude should persist when incoming is nil")
	}
	if len(merged.OriginImages) != 1 {
		t.Error("OriginImages should persist when incoming is empty")
	}
}

func TestMergeListingNonEmptyIncomingWins(t *testing.T) {
	existing := &models.Listing{
		ExternalID:  "11105399",
		PriceText:   "$700,000",
		LowerPrice:  intp(700000),
		UpperPrice:  intp(700000),
		Description: "Old text",
	}
	incoming := &models.Listing{
		ExternalID:  "11105399",
		PriceText:   "$770,000 to $820,000",
		LowerPrice:  intp(770000),
		UpperPrice:  intp(820000),
		Description: "New text",
	}

	merged := MergeListing(existing, incoming)

	if merged.PriceText != "$770,000 to $820,000" {
		t.Errorf("PriceText = %q; incoming should win", merged.PriceText)
	}
	if !eqIntp(merged.LowerPrice, intp(770000)) || !eqIntp(merged.UpperPrice, intp(820000)) {
		t.Error("incoming prices should win")
	}
	if merged.Description != "New text" {
		t.Errorf("Description = %q; incoming should win", merged.Description)
	}
}

func TestMergeListingIdenticalPayloadIsIdempotent(t *testing.T) {
	stored := &models.Listing{
		ExternalID:  "10486605",
		URL:         "https://www.homely.com.au/homes/b/10486605",
		Address:     "24-26 Darling Street East Melbourne VIC 3002",
		Postcode:    "3002",
		LowerPrice:  intp(3900000),
		UpperPrice:  intp(4290000),
		Bedrooms:    intp(4),
		Description: "Grand period residence.",
		AgentID:     int64p(3),
	}
	incoming := *stored

	merged := MergeListing(stored, &incoming)

	if merged.Address != stored.Address || merged.Postcode != stored.Postcode ||
		!eqIntp(merged.LowerPrice, stored.LowerPrice) || !eqIntp(merged.UpperPrice, stored.UpperPrice) ||
		!eqIntp(merged.Bedrooms, stored.Bedrooms) || merged.Description != stored.Description {
		t.Error("re-ingesting an identical payload must leave the record unchanged")
	}
	if merged.AgentID == nil || *merged.AgentID != 3 {
		t.Error("agent reference should be unchanged for identical payloads")
	}
}

func TestMergeListingAlwaysReassignsAgent(t *testing.T) {
	existing := &models.Listing{ExternalID: "1", AgentID: int64p(7)}

	merged := MergeListing(existing, &models.Listing{ExternalID: "1", AgentID: int64p(9)})
	if merged.AgentID == nil || *merged.AgentID != 9 {
		t.Error("agent reference should follow the newest resolution")
	}

	// Even a nil incoming agent replaces the stored reference: the
	// linkage mirrors this pass's resolution, not history.
	merged = MergeListing(existing, &models.Listing{ExternalID: "1"})
	if merged.AgentID != nil {
		t.Error("agent reference should be cleared when this pass resolved none")
	}
}

func TestMergeAgent(t *testing.T) {
	existing := &models.Agent{
		ID:     4,
		Name:   "Jane Citizen",
		Phone:  "0412 345 678",
		Agency: "Example Realty",
		Email:  "jane@example.com",
	}

	merged := MergeAgent(existing, models.AgentContact{
		Name:       "Jane Citizen",
		Phone:      "0412 345 678",
		Agency:     "New Realty",
		ProfileURL: "/agent/jane",
	})

	if merged.Agency != "New Realty" {
		t.Errorf("Agency = %q; incoming should win", merged.Agency)
	}
	if merged.Email != "jane@example.com" {
		t.Errorf("Email = %q; stored value should persist", merged.Email)
	}
	if merged.ProfileURL != "/agent/jane" {
		t.Errorf("ProfileURL = %q; incoming should win", merged.ProfileURL)
	}
	if merged.ID != 4 || merged.Name != "Jane Citizen" {
		t.Error("identity fields should be untouched")
	}
}

func eqIntp(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
