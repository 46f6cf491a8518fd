package query

import (
	"fmt"
	"strings"

	"github.com/signalsfoundry/mapengine/model"
)

// Prompts shown before reading a country name.
const (
	PromptCountry     = "Insert the name of the country:"
	PromptSource      = "Insert the name of the source country:"
	PromptDestination = "Insert the name of the destination country:"
)

const (
	msgCountryInfo    = "%s => continent: %s, tax fees: %d"
	msgInvalidCountry = "%s is not a valid country, please try again."
	msgEmptyCountry   = "Please type the name of a country."
	msgNoCrossborder  = "No crossborder travel is required."
	msgNoRoute        = "No route could be found between %s and %s."
	msgFastestRoute   = "The fastest route is: %s"
	msgContinents     = "You will visit the following continents: %s"
	msgTax            = "You will spend this amount (%d) for cross-border taxes"
)

// bracketList renders items as "[A, B, C]".
func bracketList(items []string) string {
	return "[" + strings.Join(items, ", ") + "]"
}

func invalidCountry(name string) string {
	if name == "" {
		return msgEmptyCountry
	}
	return fmt.Sprintf(msgInvalidCountry, name)
}

// FormatCountry renders the facts line for c.
func FormatCountry(c model.Country) string {
	return fmt.Sprintf(msgCountryInfo, c.Name, c.Continent, c.Tax)
}
