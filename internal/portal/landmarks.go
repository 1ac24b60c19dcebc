package portal

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"rmpower/internal/browser"
)

// A Landmark is a stable markup signature identifying a logical page state.
// Matching is done against the rendered page source, never against URLs,
// since the portal rewrites locations client-side.
type Landmark struct {
	Name  string
	Match func(doc *goquery.Document) bool
}

var (
	accountHomeLandmark = Landmark{
		Name: "account-home",
		Match: func(doc *goquery.Document) bool {
			return titleIs(doc, "My account") || hasLinkText(doc, "Energy usage")
		},
	}

	loginErrorLandmark = Landmark{
		Name: "login-error",
		Match: func(doc *goquery.Document) bool {
			if doc.Find("div.error-message, p.error, .alert-danger").Length() > 0 {
				return true
			}
			return bodyContains(doc, "password you entered is incorrect") ||
				bodyContains(doc, "couldn't find an account")
		},
	}

	mfaChallengeLandmark = Landmark{
		Name: "mfa-challenge",
		Match: func(doc *goquery.Document) bool {
			if doc.Find(`input#otpCode, input[name="verificationCode"]`).Length() > 0 {
				return true
			}
			return bodyContains(doc, "verification code")
		},
	}

	usageViewLandmark = Landmark{
		Name: "usage-view",
		Match: func(doc *goquery.Document) bool {
			if titleIs(doc, "Energy usage") {
				return true
			}
			for _, sel := range usageTableSelectors[:len(usageTableSelectors)-1] {
				if doc.Find(sel).Length() > 0 {
					return true
				}
			}
			return doc.Find("div.usage-graph, div.usage-history").Length() > 0
		},
	}

	forecastLandmark = Landmark{
		Name: "billing-forecast",
		Match: func(doc *goquery.Document) bool {
			return doc.Find("div.billing-forecast").Length() > 0
		},
	}
)

// anyLandmark builds a wait condition that holds once any of the given
// landmarks is present in the page source.
func anyLandmark(landmarks ...Landmark) browser.Condition {
	return func(pageHTML string) bool {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
		if err != nil {
			return false
		}
		for _, lm := range landmarks {
			if lm.Match(doc) {
				return true
			}
		}
		return false
	}
}

func titleIs(doc *goquery.Document, want string) bool {
	return strings.TrimSpace(doc.Find("title").First().Text()) == want
}

func hasLinkText(doc *goquery.Document, text string) bool {
	found := false
	doc.Find("a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.TrimSpace(s.Text()) == text {
			found = true
			return false
		}
		return true
	})
	return found
}

func bodyContains(doc *goquery.Document, text string) bool {
	return strings.Contains(strings.ToLower(doc.Find("body").Text()), strings.ToLower(text))
}
