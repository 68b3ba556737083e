package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/chri75252/simpler-fba/internal/config"
	"github.com/chri75252/simpler-fba/internal/models"
)

var eanInTextRe = regexp.MustCompile(`\b(\d{12,14})\b`)

// SupplierParser extracts products from supplier category listing pages using
// the per-site selectors from config.
type SupplierParser struct {
	site config.SupplierSite
}

func NewSupplierParser(site config.SupplierSite) *SupplierParser {
	return &SupplierParser{site: site}
}

// ParseCategoryPage returns the products on one listing page plus the URL of
// the next page, if any.
func (p *SupplierParser) ParseCategoryPage(html, pageURL string) ([]*models.SupplierProduct, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	sel := p.site.Selectors
	var products []*models.SupplierProduct

	doc.Find(sel.ProductCard).Each(func(i int, card *goquery.Selection) {
		product := &models.SupplierProduct{
			Title:               strings.TrimSpace(card.Find(sel.Title).First().Text()),
			SourceCategoryURL:   pageURL,
			ExtractionTimestamp: time.Now(),
		}

		priceText := card.Find(sel.Price).First().Text()
		product.Price = ParsePrice(priceText)
		product.Currency = ParseCurrency(priceText)

		if href, ok := card.Find(sel.URL).First().Attr("href"); ok {
			product.URL = p.absoluteURL(href)
		}
		if img, ok := card.Find(sel.Image).First().Attr("src"); ok {
			product.ImageURL = p.absoluteURL(img)
		}

		product.EAN = p.extractEAN(card)

		if product.Title != "" && product.URL != "" {
			products = append(products, product)
		}
	})

	next := ""
	if sel.NextPage != "" {
		if href, ok := doc.Find(sel.NextPage).First().Attr("href"); ok {
			next = p.absoluteURL(href)
		}
	}

	return products, next, nil
}

// extractEAN tries the configured selector first (attribute or text), then
// falls back to scanning the card for a bare 12-14 digit run.
func (p *SupplierParser) extractEAN(card *goquery.Selection) string {
	sel := p.site.Selectors
	if sel.EAN != "" {
		node := card.Find(sel.EAN).First()
		for _, attr := range []string{"data-ean", "data-barcode", "content"} {
			if v, ok := node.Attr(attr); ok && isDigits(v) {
				return v
			}
		}
		if text := strings.TrimSpace(node.Text()); isDigits(text) {
			return text
		}
	}

	if m := eanInTextRe.FindString(card.Text()); m != "" {
		return m
	}
	return ""
}

func (p *SupplierParser) absoluteURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}

	base, err := url.Parse(p.site.BaseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func isDigits(s string) bool {
	if len(s) < 12 || len(s) > 14 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
