package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/chri75252/simpler-fba/internal/models"
)

// SearchResult is one hit on an Amazon search results page.
type SearchResult struct {
	ASIN  string
	Title string
	Price float64
	URL   string
}

type AmazonParser struct {
	rankPatterns   []*regexp.Regexp
	boughtPattern  *regexp.Regexp
	offersPattern  *regexp.Regexp
	priceSelectors []string
}

func NewAmazonParser() *AmazonParser {
	return &AmazonParser{
		rankPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)best\s*sellers?\s*rank[:\s]*#?([\d,]+)\s+in\s+([^(\n]+)`),
			regexp.MustCompile(`#([\d,]+)\s+in\s+([A-Za-z][^(\n]+)`),
		},
		boughtPattern: regexp.MustCompile(`(?i)([\d,.]+)(K?)\+?\s*bought in past month`),
		offersPattern: regexp.MustCompile(`(?i)New\s*\((\d+)\)\s*from`),
		priceSelectors: []string{
			"#corePrice_feature_div .a-offscreen",
			".a-price .a-offscreen",
			"span.a-price.apexPriceToPay .a-offscreen",
			"#priceblock_dealprice",
			"#priceblock_ourprice",
			".a-price-whole",
		},
	}
}

// ParseSearchResults extracts organic hits from a search page, skipping
// sponsored slots.
func (p *AmazonParser) ParseSearchResults(html string) ([]*SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var results []*SearchResult
	doc.Find("div[data-component-type='s-search-result']").Each(func(i int, s *goquery.Selection) {
		asin, ok := s.Attr("data-asin")
		if !ok || asin == "" {
			return
		}
		if s.Find(".puis-sponsored-label-text, .s-sponsored-label-info-icon").Length() > 0 {
			return
		}

		result := &SearchResult{
			ASIN:  asin,
			Title: strings.TrimSpace(s.Find("h2 a span, h2 span").First().Text()),
			Price: ParsePrice(s.Find(".a-price .a-offscreen").First().Text()),
		}
		if href, ok := s.Find("h2 a, a.a-link-normal").First().Attr("href"); ok {
			result.URL = href
		}

		if result.Title != "" {
			results = append(results, result)
		}
	})

	return results, nil
}

// ParseProductPage extracts the snapshot fields from a listing page. Fields
// that cannot be found are left at their zero value; only a missing title is
// an error, since that usually means the page did not render.
func (p *AmazonParser) ParseProductPage(html, asin string) (*models.AmazonSnapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	snap := &models.AmazonSnapshot{ASIN: asin}

	snap.Title = strings.TrimSpace(doc.Find("#productTitle").First().Text())
	if snap.Title == "" {
		return nil, fmt.Errorf("no product title for %s, page likely incomplete", asin)
	}

	snap.Brand = p.extractBrand(doc)

	for _, selector := range p.priceSelectors {
		text := strings.TrimSpace(doc.Find(selector).First().Text())
		if text == "" {
			continue
		}
		if price := ParsePrice(text); price > 0 {
			snap.Price = price
			snap.Currency = ParseCurrency(text)
			break
		}
	}

	snap.SalesRank, snap.Category = p.extractRank(doc)
	snap.BoughtInPastMonth = p.extractBoughtInPastMonth(doc)
	snap.TotalOfferCount = p.extractOfferCount(doc)
	snap.FBASellerCount, snap.FBMSellerCount = p.extractBuyBoxSellers(doc)

	return snap, nil
}

func (p *AmazonParser) extractBrand(doc *goquery.Document) string {
	if byline := strings.TrimSpace(doc.Find("#bylineInfo").First().Text()); byline != "" {
		byline = strings.TrimPrefix(byline, "Visit the ")
		byline = strings.TrimPrefix(byline, "Brand: ")
		byline = strings.TrimSuffix(byline, " Store")
		return strings.TrimSpace(byline)
	}
	return ""
}

func (p *AmazonParser) extractRank(doc *goquery.Document) (int, string) {
	details := doc.Find("#productDetails_detailBullets_sections1, #detailBulletsWrapper_feature_div, #productDetails_db_sections").Text()
	if details == "" {
		details = doc.Text()
	}

	for _, pattern := range p.rankPatterns {
		matches := pattern.FindStringSubmatch(details)
		if len(matches) >= 3 {
			rank, err := strconv.Atoi(strings.ReplaceAll(matches[1], ",", ""))
			if err != nil || rank <= 0 {
				continue
			}
			return rank, strings.TrimSpace(matches[2])
		}
	}
	return 0, ""
}

func (p *AmazonParser) extractBoughtInPastMonth(doc *goquery.Document) int {
	text := doc.Find("#socialProofingAsinFaceout_feature_div, #social-proofing-faceout-title-tk_bought").Text()
	if text == "" {
		text = doc.Text()
	}

	matches := p.boughtPattern.FindStringSubmatch(text)
	if len(matches) < 3 {
		return 0
	}

	n, err := strconv.ParseFloat(strings.ReplaceAll(matches[1], ",", ""), 64)
	if err != nil {
		return 0
	}
	if strings.EqualFold(matches[2], "K") {
		n *= 1000
	}
	return int(n)
}

// extractBuyBoxSellers classifies the buy-box winner from the merchant line
// ("Sold by X and Fulfilled by Amazon", "Dispatches from and sold by ...").
// Only the winning offer is visible on a listing page, so the counts are 0 or
// 1; the full offer depth is in TotalOfferCount.
func (p *AmazonParser) extractBuyBoxSellers(doc *goquery.Document) (fba, fbm int) {
	text := strings.ToLower(doc.Find("#merchant-info, #tabular-buybox, #sellerProfileTriggerId").Text())
	if strings.TrimSpace(text) == "" {
		return 0, 0
	}
	if strings.Contains(text, "fulfilled by amazon") || strings.Contains(text, "sold by amazon") {
		return 1, 0
	}
	return 0, 1
}

func (p *AmazonParser) extractOfferCount(doc *goquery.Document) int {
	text := doc.Find("#olpLinkWidget_feature_div, #olp_feature_div, #mbc").Text()
	if text == "" {
		text = doc.Text()
	}

	matches := p.offersPattern.FindStringSubmatch(text)
	if len(matches) < 2 {
		return 0
	}
	n, _ := strconv.Atoi(matches[1])
	return n
}
