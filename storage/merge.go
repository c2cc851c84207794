package storage

import "homely-scraper/models"

// Merge rule: an incoming empty value never overwrites an existing
// non-empty stored value; a non-empty incoming value always wins. These
// helpers are pure so the rule is testable without a database.

func mergeString(incoming, existing string) string {
	if incoming != "" {
		return incoming
	}
	return existing
}

func mergeIntPtr(incoming, existing *int) *int {
	if incoming != nil {
		return incoming
	}
	return existing
}

func mergeFloatPtr(incoming, existing *float64) *float64 {
	if incoming != nil {
		return incoming
	}
	return existing
}

func mergeStrings(incoming, existing []string) []string {
	if len(incoming) > 0 {
		return incoming
	}
	return existing
}

// MergeListing folds an incoming listing into the stored one, returning
// the record to write back. Identity fields (ExternalID) and the agent
// reference are taken from the incoming record: the newest crawl wins
// the agent linkage even when other fields are kept.
func MergeListing(existing, incoming *models.Listing) *models.Listing {
	merged := *existing

	merged.URL = mergeString(incoming.URL, existing.URL)
	merged.Title = mergeString(incoming.Title, existing.Title)
	merged.Address = mergeString(incoming.Address, existing.Address)
	merged.Suburb = mergeString(incoming.Suburb, existing.Suburb)
	merged.State = mergeString(incoming.State, existing.State)
	merged.Postcode = mergeString(incoming.Postcode, existing.Postcode)
	merged.PriceText = mergeString(incoming.PriceText, existing.PriceText)
	merged.LowerPrice = mergeIntPtr(incoming.LowerPrice, existing.LowerPrice)
	merged.UpperPrice = mergeIntPtr(incoming.UpperPrice, existing.UpperPrice)
	merged.PropertyType = mergeString(incoming.PropertyType, existing.PropertyType)
	merged.Bedrooms = mergeIntPtr(incoming.Bedrooms, existing.Bedrooms)
	merged.Bathrooms = mergeIntPtr(incoming.Bathrooms, existing.Bathrooms)
	merged.CarSpaces = mergeIntPtr(incoming.CarSpaces, existing.CarSpaces)
	merged.LandArea = mergeIntPtr(incoming.LandArea, existing.LandArea)
	merged.Description = mergeString(incoming.Description, existing.Description)
	merged.CouncilRates = mergeString(incoming.CouncilRates, existing.CouncilRates)
	merged.Latitude = mergeFloatPtr(incoming.Latitude, existing.Latitude)
	merged.Longitude = mergeFloatPtr(incoming.Longitude, existing.Longitude)
	merged.Images = mergeStrings(incoming.Images, existing.Images)
	merged.OriginImages = mergeStrings(incoming.OriginImages, existing.OriginImages)
	merged.FloorPlan = mergeStrings(incoming.FloorPlan, existing.FloorPlan)
	merged.OriginFloorPlan = mergeStrings(incoming.OriginFloorPlan, existing.OriginFloorPlan)
	merged.PDFDocuments = mergeStrings(incoming.PDFDocuments, existing.PDFDocuments)
	merged.OriginDocuments = mergeStrings(incoming.OriginDocuments, existing.OriginDocuments)
	if !incoming.PublishDate.IsZero() {
		merged.PublishDate = incoming.PublishDate
	}

	// The agent may have been renamed or re-contacted; the newest
	// resolution always wins.
	merged.AgentID = incoming.AgentID

	return &merged
}

// MergeAgent folds incoming contact details into a stored agent.
// Identity fields (Name, Phone) are never touched.
func MergeAgent(existing *models.Agent, incoming models.AgentContact) *models.Agent {
	merged := *existing
	merged.Agency = mergeString(incoming.Agency, existing.Agency)
	merged.Email = mergeString(incoming.Email, existing.Email)
	merged.ProfileURL = mergeString(incoming.ProfileURL, existing.ProfileURL)
	return &merged
}
