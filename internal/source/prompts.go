package source

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/reputato/internal/model"
)

// investigatorSystemPrompt frames the extraction model as an OSINT analyst.
// Exact-name matching is non-negotiable: a similarly named or differently
// cased company must be reported as not found, never substituted.
const investigatorSystemPrompt = `You are an OSINT analyst who evaluates companies based on public information.
You extract structured data from raw page content. You never guess or assume anything.
Company name matching must be case-sensitive and exact. Do not return data for
similarly named or differently-cased companies. If the page does not clearly
belong to the exact company asked about, report it as not found.
Return ONLY a JSON object. No raw HTML, markdown, explanations, or extra fields.
If a field is missing from the page, use null for that field.`

const profilePrompt = `Extract the professional-network profile data for the company "%s" from the page content below.

Return ONLY a JSON object with these keys:
{
  "found": bool,
  "company_name": str or null,
  "description": str or null,
  "number_of_employees": str or null,
  "profile_url": str or null,
  "headquarters": str or null,
  "founded": str or null,
  "industry": str or null,
  "website": str or null
}

Set "found" to false and every other field to null if the page is not the
profile of exactly "%s".

Page content:
%s`

const reviewsPrompt = `Extract employer-review data for the company "%s" from the page content below.

Return ONLY a JSON object with these keys:
{
  "found": bool,
  "rating": float or null,
  "num_reviews": int or null,
  "review_summary": str or null
}

"rating" is the overall company rating out of 5. "review_summary" is a short
summary of the top pros and cons from reviews posted in the last two years only;
ignore older reviews. Set "found" to false and every other field to null if the
page has no reviews for exactly "%s".

Page content:
%s`

const fundingPrompt = `Extract funding-database data for the company "%s" from the page content below.

Return ONLY a JSON object with these keys:
{
  "found": bool,
  "founded": str or null,
  "funding_round": str or null,
  "funding_date": str or null,
  "funding_amount": str or null,
  "investors": list[str] or null,
  "key_people": list[str] or null
}

"funding_round" is the name of the latest round. Set "found" to false and every
other field to null if the page is not about exactly "%s".

Page content:
%s`

const newsPrompt = `Extract news events about the company "%s" from the search results below, covering roughly the past two years.

Return ONLY a JSON object with these keys:
{
  "found": bool,
  "layoffs": list[str],
  "scandals": list[str],
  "achievements": list[str]
}

Layoffs: dates and brief summaries of layoff announcements. Scandals: brief,
neutral headlines about controversies or investigations. Achievements: product
launches, funding milestones, acquisitions, or major hires. Only include
verifiable, clearly dated events about exactly "%s"; up to 3 short bullet
summaries per category. If no news is found in a category, return an empty
list. Set "found" to false only when no relevant news exists at all.

Search results:
%s`

// extractionPrompt builds the per-source user prompt around the raw page text.
// Page content is truncated to keep extraction inside the model's context.
func extractionPrompt(kind model.SourceKind, companyName, raw string) string {
	raw = truncateText(raw, 60000)
	switch kind {
	case model.SourceProfile:
		return fmt.Sprintf(profilePrompt, companyName, companyName, raw)
	case model.SourceReviews:
		return fmt.Sprintf(reviewsPrompt, companyName, companyName, raw)
	case model.SourceFunding:
		return fmt.Sprintf(fundingPrompt, companyName, companyName, raw)
	case model.SourceNews:
		return fmt.Sprintf(newsPrompt, companyName, companyName, raw)
	default:
		return raw
	}
}

// targetURL builds the direct page URL for sources scraped without a search
// step.
func targetURL(kind model.SourceKind, companyName string) string {
	switch kind {
	case model.SourceProfile:
		return "https://www.linkedin.com/company/" + companySlug(companyName)
	case model.SourceFunding:
		return "https://www.crunchbase.com/organization/" + companySlug(companyName)
	default:
		return ""
	}
}

// searchQuery returns the web-search query for sources that go through the
// SERP instead of a guessable profile URL.
func searchQuery(kind model.SourceKind, companyName string) (string, bool) {
	switch kind {
	case model.SourceReviews:
		return fmt.Sprintf(`site:glassdoor.com "%s" reviews`, companyName), true
	case model.SourceNews:
		return fmt.Sprintf(`"%s" (layoffs OR scandal OR lawsuit OR acquisition OR launch) news`, companyName), true
	default:
		return "", false
	}
}

// companySlug converts a company name into a URL slug.
func companySlug(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.ReplaceAll(slug, "&", "and")
	// Remove common entity suffixes for cleaner slug.
	for _, suffix := range []string{"-llc", "-inc", "-corp", "-ltd", "-co"} {
		slug = strings.TrimSuffix(slug, suffix)
	}
	return strings.TrimRight(slug, "-")
}

// truncateText cuts s to at most n bytes without splitting a rune.
func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
