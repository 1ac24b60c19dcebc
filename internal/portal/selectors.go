package portal

// Strategy names one way of locating an element. Strategies for the same
// target are tried in order and the first selector that resolves wins, so
// markup drift between portal deployments is contained to these tables.
type Strategy struct {
	Name     string
	Selector string
}

var (
	usernameFieldStrategies = []Strategy{
		{Name: "idm-sign-in-name", Selector: "input#signInName"},
		{Name: "named-username", Selector: `input[name="username"]`},
		{Name: "email-input", Selector: `input[type="email"]`},
	}

	passwordFieldStrategies = []Strategy{
		{Name: "idm-password", Selector: "input#password"},
		{Name: "password-input", Selector: `input[type="password"]`},
	}

	submitButtonStrategies = []Strategy{
		{Name: "idm-next", Selector: "button#next"},
		{Name: "form-submit", Selector: `button[type="submit"]`},
	}

	// The consent banner only appears on fresh sessions; dismissing it is
	// best-effort.
	cookieBannerStrategies = []Strategy{
		{Name: "wcss-banner", Selector: "wcss-cookie-banner > aside > button"},
	}

	// Pages the usage history backwards one period.
	previousPeriodStrategies = []Strategy{
		{Name: "history-previous", Selector: "button.link.usage-previous"},
		{Name: "aria-previous", Selector: `button[aria-label="Previous"]`},
	}
)

// usageTableSelectors locate the rendered usage history table, most
// specific first.
var usageTableSelectors = []string{
	"table.usage-history",
	"table.mat-table",
	"table",
}
