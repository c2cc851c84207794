package homely

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"homely-scraper/models"
)

// Selectors for the site's detail-page structure. Pages vary, so every
// lookup below tolerates a missing node and yields a null field.
const (
	selPropertyLink   = `article[aria-label="Property Listing"] a`
	selDescription    = `section[aria-label="Property description"]`
	selSummary        = `section[aria-label="Summary"]`
	selMap            = `section[aria-label="Property map"]`
	selContactSection = `section[aria-label="Contact the real estate agent"]`
	selGallery        = `div[aria-label="Vertical image gallery"]`
)

var (
	externalIDRe  = regexp.MustCompile(`/(\d+)/?$`)
	priceRangeRe  = regexp.MustCompile(`(?i)\$?([\d,]+)\s*(?:-|to)\s*\$?([\d,]+)`)
	priceSingleRe = regexp.MustCompile(`\$([\d,]+)`)
	postcodeRe    = regexp.MustCompile(`\b\d{4}\b`)
	stateRe       = regexp.MustCompile(`\b([A-Z]{2,3})\b\s+\d{4}\b`)
	digitsRe      = regexp.MustCompile(`\d+`)
)

// ExtractExternalID pulls the site-assigned numeric listing id from the
// trailing path segment, e.g. ".../105-conrad-street-st-albans/11105399"
// yields "11105399". Returns "" when the URL has no trailing number.
func ExtractExternalID(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	m := externalIDRe.FindStringSubmatch(u.Path)
	if m == nil {
		return ""
	}
	return m[1]
}

// priceStrategy attempts one price format and reports whether it matched.
type priceStrategy func(text string) (lower, upper *int, ok bool)

// priceStrategies are tried in order; the range pattern must run before
// the single-value pattern because a single value is a substring of a
// range.
var priceStrategies = []priceStrategy{
	func(text string) (*int, *int, bool) {
		m := priceRangeRe.FindStringSubmatch(text)
		if m == nil {
			return nil, nil, false
		}
		lo, err1 := parseMoney(m[1])
		hi, err2 := parseMoney(m[2])
		if err1 != nil || err2 != nil {
			return nil, nil, false
		}
		return &lo, &hi, true
	},
	func(text string) (*int, *int, bool) {
		m := priceSingleRe.FindStringSubmatch(text)
		if m == nil {
			return nil, nil, false
		}
		v, err := parseMoney(m[1])
		if err != nil {
			return nil, nil, false
		}
		hi := v
		return &v, &hi, true
	},
}

// ParsePrice parses a listing price string into a (lower, upper) pair.
// Qualifier text before the first currency marker is discarded, so
// "For Sale - $1,799,000" and "Expressions of Interest | $3,900,000 -
// $4,290,000" both parse. Single values populate both bounds; an
// unparseable string yields (nil, nil).
func ParsePrice(text string) (lower, upper *int) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	if i := strings.Index(text, "$"); i != -1 {
		text = text[i:]
	}

	for _, try := range priceStrategies {
		if lo, hi, ok := try(text); ok {
			return lo, hi
		}
	}
	return nil, nil
}

func parseMoney(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(strings.ReplaceAll(s, ",", "")))
}

// ParsePostcode returns the first standalone 4-digit token in the
// combined city/region text, e.g. "Abbotsford VIC 3067" -> "3067".
func ParsePostcode(text string) string {
	return postcodeRe.FindString(text)
}

// ParseState returns the uppercase state token preceding the postcode,
// e.g. "Abbotsford VIC 3067" -> "VIC". Empty when absent.
func ParseState(text string) string {
	m := stateRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

// ParseSuburb returns the locality text before the state token, falling
// back to the whole trimmed string when no state token is present.
func ParseSuburb(text string) string {
	text = strings.TrimSpace(text)
	if m := stateRe.FindStringIndex(text); m != nil {
		return strings.TrimSpace(text[:m[0]])
	}
	return text
}

// ExtractListingLinks harvests detail-page URLs from an index-page
// snapshot, resolved against the page URL.
func ExtractListingLinks(snapshot, pageURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snapshot))
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	var links []string
	seen := make(map[string]struct{})
	doc.Find(selPropertyLink).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})
	return links, nil
}

// ExtractDetail parses a detail-page snapshot into a best-effort record.
// Missing optional nodes yield null fields; only the caller enforces the
// external id requirement.
func ExtractDetail(snapshot, pageURL string) (*models.Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snapshot))
	if err != nil {
		return nil, err
	}

	e := &models.Extraction{
		URL:         pageURL,
		ExternalID:  ExtractExternalID(pageURL),
		PublishDate: time.Now().UTC(),
	}

	header := doc.Find("header").First()

	address := strings.TrimSpace(header.Find("h1").First().Text())
	city := strings.TrimSpace(header.Find("span.inline").First().Text())
	if address != "" && city != "" {
		e.Address = address + " " + city
	} else if address != "" {
		e.Address = address
	}
	e.Suburb = ParseSuburb(city)
	e.State = ParseState(city)
	if e.State == "" {
		e.State = city
	}
	e.Postcode = ParsePostcode(city)

	e.PriceText = strings.TrimSpace(header.Find(selSummary + " h2").First().Text())
	e.LowerPrice, e.UpperPrice = ParsePrice(e.PriceText)

	e.Bedrooms = extractCount(doc, "Bed")
	e.Bathrooms = extractCount(doc, "Bath")
	e.CarSpaces = extractCount(doc, "Car")
	e.PropertyType = extractPropertyType(doc)

	desc := doc.Find(selDescription).First()
	e.Description = strings.TrimSpace(desc.Find("p").First().Text())
	e.CouncilRates = extractCouncilRates(desc)
	e.LandArea = extractArea(doc, desc)
	if link := extractDocumentLink(desc); link != "" {
		e.OriginDocuments = []string{link}
	}

	e.Latitude, e.Longitude = extractCoordinates(doc)
	e.Agent = extractAgent(doc)

	return e, nil
}

// ExtractGallery splits gallery-snapshot images into photos and floor
// plans using the nearest preceding section heading. A missing gallery
// yields two empty sets.
func ExtractGallery(snapshot string) (images, floorPlans []string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snapshot))
	if err != nil {
		return nil, nil, err
	}

	section := ""
	doc.Find(selGallery).First().Find("h2, img").Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "h2" {
			section = strings.TrimSpace(s.Text())
			return
		}
		src, ok := s.Attr("src")
		if !ok || src == "" {
			return
		}
		switch {
		case strings.Contains(section, "Floor plan"):
			floorPlans = append(floorPlans, src)
		case strings.Contains(section, "Photo"):
			images = append(images, src)
		}
	})
	return images, floorPlans, nil
}

// extractCount reads the number adjacent to a labeled marker, e.g. the
// text sibling of <span aria-label="Bed"> inside its <li>. Unparseable
// text yields nil.
func extractCount(doc *goquery.Document, label string) *int {
	var result *int
	doc.Find(`li:has(span[aria-label="` + label + `"])`).EachWithBreak(func(_ int, li *goquery.Selection) bool {
		if n, err := strconv.Atoi(strings.TrimSpace(ownText(li))); err == nil {
			result = &n
			return false
		}
		return true
	})
	return result
}

// extractArea reads the Area marker from the summary bar, falling back
// to the "Area:" block inside the description section. The value may
// carry units ("650m²"), so the leading digits are taken.
func extractArea(doc *goquery.Document, desc *goquery.Selection) *int {
	raw := ""
	doc.Find(`li:has(span[aria-label="Area"])`).EachWithBreak(func(_ int, li *goquery.Selection) bool {
		if t := strings.TrimSpace(ownText(li)); t != "" {
			raw = t
			return false
		}
		return true
	})

	if raw == "" {
		desc.Find("div").EachWithBreak(func(_ int, div *goquery.Selection) bool {
			if strings.Contains(ownText(div), "Area:") {
				raw = strings.TrimSpace(div.Find("span").First().Text())
				return false
			}
			return true
		})
	}

	if raw == "" {
		return nil
	}
	m := digitsRe.FindString(strings.ReplaceAll(raw, ",", ""))
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &n
}

// extractPropertyType reads the summary heading "<Type> for sale",
// defaulting to "House" as the site omits the type for standalone homes.
func extractPropertyType(doc *goquery.Document) string {
	propertyType := "House"
	doc.Find(selSummary + " h3 span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if i := strings.Index(text, " for sale"); i > 0 {
			propertyType = text[:i]
			return false
		}
		return true
	})
	return propertyType
}

func extractCouncilRates(desc *goquery.Selection) string {
	rates := ""
	desc.Find("div").EachWithBreak(func(_ int, div *goquery.Selection) bool {
		h3 := div.ChildrenFiltered("h3").First()
		if strings.Contains(h3.Text(), "Council rates") {
			rates = strings.TrimSpace(div.ChildrenFiltered("span").First().Text())
			return false
		}
		return true
	})
	return rates
}

// extractDocumentLink finds the first link under the "Documents" heading.
func extractDocumentLink(desc *goquery.Selection) string {
	link := ""
	desc.Find("h3").EachWithBreak(func(_ int, h3 *goquery.Selection) bool {
		if strings.TrimSpace(h3.Text()) != "Documents" {
			return true
		}
		if href, ok := h3.NextFiltered("div").Find("a").First().Attr("href"); ok {
			link = strings.TrimSpace(href)
		}
		return false
	})
	return link
}

// extractCoordinates pulls lat/lng from the static-map background image,
// whose URL carries a "center=<lat>,<lng>&..." parameter. Absence yields
// nil coordinates rather than a 0,0 sentinel.
func extractCoordinates(doc *goquery.Document) (lat, lng *float64) {
	style := ""
	doc.Find(selMap + ` div[style*="background-image"]`).EachWithBreak(func(_ int, div *goquery.Selection) bool {
		if s, ok := div.Attr("style"); ok && strings.Contains(s, "center=") {
			style = s
			return false
		}
		return true
	})
	if style == "" {
		return nil, nil
	}

	center := style[strings.Index(style, "center=")+len("center="):]
	if i := strings.Index(center, "&"); i != -1 {
		center = center[:i]
	}
	parts := strings.SplitN(center, ",", 2)
	if len(parts) != 2 {
		return nil, nil
	}

	la, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	ln, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return nil, nil
	}
	return &la, &ln
}

// extractAgent pulls the agent contact block. The phone comes from the
// first telephone-scheme link anywhere in the contact section.
func extractAgent(doc *goquery.Document) models.AgentContact {
	contact := doc.Find(selContactSection).First()
	article := contact.Find("article").First()

	agent := models.AgentContact{
		Name:   strings.TrimSpace(article.Find("h3").First().Text()),
		Agency: strings.TrimSpace(article.Find("h4").First().Text()),
	}

	if href, ok := article.Find("a[aria-label]").First().Attr("href"); ok {
		agent.ProfileURL = strings.TrimSpace(href)
	}

	contact.Find(`[href^="tel:"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if href, ok := s.Attr("href"); ok {
			agent.Phone = strings.TrimSpace(strings.TrimPrefix(href, "tel:"))
			return false
		}
		return true
	})

	return agent
}

// ownText returns the text of a selection's direct child text nodes,
// excluding nested elements. Needed for markers like
// <li><span aria-label="Bed"></span> 3</li> where only the sibling text
// node holds the value.
func ownText(s *goquery.Selection) string {
	var b strings.Builder
	for _, node := range s.Nodes {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
	}
	return strings.TrimSpace(b.String())
}
