package homely

import (
	"strconv"
	"testing"
)

func TestExtractExternalID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.homely.com.au/homes/105-conrad-street-st-albans-vic-3021/11105399", "11105399"},
		{"https://www.homely.com.au/homes/24-26-darling-street-east-melbourne-vic-3002/10486605/", "10486605"},
		{"https://www.homely.com.au/for-sale/melbourne-vic-3000/real-estate", ""},
		{"https://www.homely.com.au/homes/some-street", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ExtractExternalID(tt.url); got != tt.want {
			t.Errorf("ExtractExternalID(%q) = %q; want %q", tt.url, got, tt.want)
		}
	}
}

func TestParsePrice(t *testing.T) {
	intp := func(n int) *int { return &n }

	tests := []struct {
		raw   string
		lower *int
		upper *int
	}{
		{"$1,460,000 - $1,600,000", intp(1460000), intp(1600000)},
		{"$770,000 to $820,000", intp(770000), intp(820000)},
		{"$249,500", intp(249500), intp(249500)},
		{"For Sale - $1,799,000", intp(1799000), intp(1799000)},
		{"For Sale $1,800,000", intp(1800000), intp(1800000)},
		{"Expressions of Interest | $3,900,000 - $4,290,000", intp(3900000), intp(4290000)},
		{"", nil, nil},
		{"Contact agent", nil, nil},
	}

	for _, tt := range tests {
		lo, hi := ParsePrice(tt.raw)
		if !intEq(lo, tt.lower) || !intEq(hi, tt.upper) {
			t.Errorf("ParsePrice(%q) = (%s, %s); want (%s, %s)",
				tt.raw, fmtIntp(lo), fmtIntp(hi), fmtIntp(tt.lower), fmtIntp(tt.upper))
		}
	}
}

func TestParsePostcode(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Abbotsford VIC 3067", "3067"},
		{"St Albans VIC 3021", "3021"},
		{"No code here", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ParsePostcode(tt.raw); got != tt.want {
			t.Errorf("ParsePostcode(%q) = %q; want %q", tt.raw, got, tt.want)
		}
	}
}

func TestParseStateAndSuburb(t *testing.T) {
	if got := ParseState("Abbotsford VIC 3067"); got != "VIC" {
		t.Errorf("ParseState = %q; want VIC", got)
	}
	if got := ParseState("somewhere"); got != "" {
		t.Errorf("ParseState = %q; want empty", got)
	}
	if got := ParseSuburb("Abbotsford VIC 3067"); got != "Abbotsford" {
		t.Errorf("ParseSuburb = %q; want Abbotsford", got)
	}
	if got := ParseSuburb("  East Melbourne  "); got != "East Melbourne" {
		t.Errorf("ParseSuburb fallback = %q; want East Melbourne", got)
	}
}

const indexSnapshot = `
<html><body>
<article aria-label="Property Listing">
  <a href="/homes/105-conrad-street-st-albans-vic-3021/11105399">Card</a>
</article>
<article aria-label="Property Listing">
  <a href="https://www.homely.com.au/homes/24-26-darling-street/10486605">Card</a>
</article>
<article aria-label="Property Listing">
  <a href="/homes/105-conrad-street-st-albans-vic-3021/11105399">Duplicate</a>
</article>
<article><a href="/not-a-listing/1">Other article</a></article>
</body></html>`

func TestExtractListingLinks(t *testing.T) {
	links, err := ExtractListingLinks(indexSnapshot, "https://www.homely.com.au/for-sale/melbourne-vic-3000/real-estate")
	if err != nil {
		t.Fatalf("ExtractListingLinks: %v", err)
	}

	want := []string{
		"https://www.homely.com.au/homes/105-conrad-street-st-albans-vic-3021/11105399",
		"https://www.homely.com.au/homes/24-26-darling-street/10486605",
	}
	if len(links) != len(want) {
		t.Fatalf("got %d links, want %d: %v", len(links), len(want), links)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("link[%d] = %q; want %q", i, links[i], want[i])
		}
	}
}

const detailSnapshot = `
<html><body>
<header>
  <h1>105 Conrad Street</h1>
  <span class="inline">St Albans VIC 3021</span>
  <section aria-label="Summary">
    <h2>$770,000 to $820,000</h2>
    <h3><span>Apartment for sale</span></h3>
  </section>
  <ul>
    <li><span aria-label="Bed"></span> 3</li>
    <li><span aria-label="Bath"></span> 2</li>
    <li><span aria-label="Car"></span> 1</li>
    <li><span aria-label="Area"></span> 650m²</li>
  </ul>
</header>
<section aria-label="Property description">
  <p>A renovated family home close to schools and transport.</p>
  <div><h3>Council rates</h3><span>$1,800 per annum</span></div>
  <h3>Documents</h3>
  <div><a href="https://files.homely.com.au/statement-11105399.pdf">Section 32</a></div>
</section>
<section aria-label="Property map">
  <div style="background-image:url(https://maps.example.com/map?center=-37.7334201,144.7981836&amp;zoom=15)"></div>
</section>
<section aria-label="Contact the real estate agent">
  <article>
    <h3>Jane Citizen</h3>
    <h4>Example Realty</h4>
    <a aria-label="Jane Citizen profile" href="/agent/jane-citizen">Profile</a>
  </article>
  <a href="tel:0412 345 678">Call</a>
</section>
</body></html>`

func TestExtractDetail(t *testing.T) {
	e, err := ExtractDetail(detailSnapshot, "https://www.homely.com.au/homes/105-conrad-street-st-albans-vic-3021/11105399")
	if err != nil {
		t.Fatalf("ExtractDetail: %v", err)
	}

	if e.ExternalID != "11105399" {
		t.Errorf("ExternalID = %q; want 11105399", e.ExternalID)
	}
	if e.Address != "105 Conrad Street St Albans VIC 3021" {
		t.Errorf("Address = %q", e.Address)
	}
	if e.Suburb != "St Albans" {
		t.Errorf("Suburb = %q; want St Albans", e.Suburb)
	}
	if e.State != "VIC" {
		t.Errorf("State = %q; want VIC", e.State)
	}
	if e.Postcode != "3021" {
		t.Errorf("Postcode = %q; want 3021", e.Postcode)
	}
	if e.PriceText != "$770,000 to $820,000" {
		t.Errorf("PriceText = %q", e.PriceText)
	}
	if !intEq(e.LowerPrice, intp(770000)) || !intEq(e.UpperPrice, intp(820000)) {
		t.Errorf("price = (%s, %s); want (770000, 820000)", fmtIntp(e.LowerPrice), fmtIntp(e.UpperPrice))
	}
	if e.PropertyType != "Apartment" {
		t.Errorf("PropertyType = %q; want Apartment", e.PropertyType)
	}
	if !intEq(e.Bedrooms, intp(3)) || !intEq(e.Bathrooms, intp(2)) || !intEq(e.CarSpaces, intp(1)) {
		t.Errorf("counts = (%s, %s, %s); want (3, 2, 1)",
			fmtIntp(e.Bedrooms), fmtIntp(e.Bathrooms), fmtIntp(e.CarSpaces))
	}
	if !intEq(e.LandArea, intp(650)) {
		t.Errorf("LandArea = %s; want 650", fmtIntp(e.LandArea))
	}
	if e.Description == "" {
		t.Error("Description should not be empty")
	}
	if e.CouncilRates != "$1,800 per annum" {
		t.Errorf("CouncilRates = %q", e.CouncilRates)
	}
	if len(e.OriginDocuments) != 1 || e.OriginDocuments[0] != "https://files.homely.com.au/statement-11105399.pdf" {
		t.Errorf("OriginDocuments = %v", e.OriginDocuments)
	}
	if e.Latitude == nil || e.Longitude == nil {
		t.Fatal("coordinates should be present")
	}
	if *e.Latitude != -37.7334201 || *e.Longitude != 144.7981836 {
		t.Errorf("coordinates = (%f, %f)", *e.Latitude, *e.Longitude)
	}
	if e.Agent.Name != "Jane Citizen" || e.Agent.Agency != "Example Realty" {
		t.Errorf("agent = %+v", e.Agent)
	}
	if e.Agent.Phone != "0412 345 678" {
		t.Errorf("agent phone = %q", e.Agent.Phone)
	}
	if e.Agent.ProfileURL != "/agent/jane-citizen" {
		t.Errorf("agent profile = %q", e.Agent.ProfileURL)
	}
}

func TestExtractDetailToleratesSparsePage(t *testing.T) {
	e, err := ExtractDetail("<html><body><p>nothing here</p></body></html>",
		"https://www.homely.com.au/homes/empty/99")
	if err != nil {
		t.Fatalf("ExtractDetail: %v", err)
	}

	if e.ExternalID != "99" {
		t.Errorf("ExternalID = %q; want 99", e.ExternalID)
	}
	if e.LowerPrice != nil || e.UpperPrice != nil {
		t.Error("prices should be nil on sparse page")
	}
	if e.Bedrooms != nil || e.Bathrooms != nil || e.CarSpaces != nil || e.LandArea != nil {
		t.Error("counts should be nil on sparse page")
	}
	if e.Latitude != nil || e.Longitude != nil {
		t.Error("coordinates should be nil on sparse page")
	}
	if e.PropertyType != "House" {
		t.Errorf("PropertyType default = %q; want House", e.PropertyType)
	}
}

func TestExtractAreaFallback(t *testing.T) {
	const snapshot = `
<html><body>
<header><h1>9 Fallback Road</h1><span class="inline">Sunshine VIC 3020</span></header>
<section aria-label="Property description">
  <p>Land ready to build.</p>
  <div>Area: <span>512 sqm</span></div>
</section>
</body></html>`

	e, err := ExtractDetail(snapshot, "https://www.homely.com.au/homes/9-fallback-road/555")
	if err != nil {
		t.Fatalf("ExtractDetail: %v", err)
	}
	if !intEq(e.LandArea, intp(512)) {
		t.Errorf("LandArea = %s; want 512", fmtIntp(e.LandArea))
	}
}

const gallerySnapshot = `
<html><body>
<div aria-label="Vertical image gallery">
  <h2>Photos</h2>
  <img src="https://img.homely.com.au/1.jpg"/>
  <img src="https://img.homely.com.au/2.jpg"/>
  <h2>Floor plan</h2>
  <img src="https://img.homely.com.au/fp1.jpg"/>
  <h2>Video</h2>
  <img src="https://img.homely.com.au/ignored.jpg"/>
</div>
</body></html>`

func TestExtractGallery(t *testing.T) {
	images, floorPlans, err := ExtractGallery(gallerySnapshot)
	if err != nil {
		t.Fatalf("ExtractGallery: %v", err)
	}

	if len(images) != 2 || images[0] != "https://img.homely.com.au/1.jpg" {
		t.Errorf("images = %v", images)
	}
	if len(floorPlans) != 1 || floorPlans[0] != "https://img.homely.com.au/fp1.jpg" {
		t.Errorf("floorPlans = %v", floorPlans)
	}
}

func TestExtractGalleryMissing(t *testing.T) {
	images, floorPlans, err := ExtractGallery("<html><body></body></html>")
	if err != nil {
		t.Fatalf("ExtractGallery: %v", err)
	}
	if len(images) != 0 || len(floorPlans) != 0 {
		t.Errorf("expected empty sets, got %v / %v", images, floorPlans)
	}
}

func intp(n int) *int { return &n }

func intEq(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func fmtIntp(p *int) string {
	if p == nil {
		return "nil"
	}
	return strconv.Itoa(*p)
}
