package sync

import (
	"encoding/json"
	"log"
	"strconv"
	"strings"

	"github.com/biter777/countries"
	"github.com/tidwall/gjson"
	"github.com/ttacon/libphonenumber"
)

// knownModifiers lists the value modifiers a mapped attribute may use.
var knownModifiers = map[string]bool{
	"phone":       true,
	"countryName": true,
	"lower":       true,
	"upper":       true,
	"trim":        true,
}

func quoteJSON(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}

func init() {

	// phone formats a number as E.164, using arg as the default country calling code
	gjson.AddModifier("phone", func(json, arg string) string {
		number := strings.TrimSpace(gjson.Parse(json).String())
		if number == "" {
			return json
		}
		region := "ZZ"
		if i, err := strconv.Atoi(arg); err == nil {
			region = libphonenumber.GetRegionCodeForCountryCode(i)
		}
		num, err := libphonenumber.Parse(number, region)
		if err != nil {
			log.Printf("Warning: failed to parse phone number %q with country code %q: %v (sending unchanged)", number, arg, err)
			return json
		}
		return quoteJSON(libphonenumber.Format(num, libphonenumber.E164))
	})

	gjson.AddModifier("countryName", func(json, arg string) string {
		s := gjson.Parse(json).String()
		c := countries.ByName(s) // will match on Alpha-2 / Alpha-3 / Name
		if countries.Unknown == c {
			return json
		}
		return quoteJSON(c.String())
	})

	gjson.AddModifier("lower", func(json, arg string) string {
		return quoteJSON(strings.ToLower(gjson.Parse(json).String()))
	})

	gjson.AddModifier("upper", func(json, arg string) string {
		return quoteJSON(strings.ToUpper(gjson.Parse(json).String()))
	})

	gjson.AddModifier("trim", func(json, arg string) string {
		return quoteJSON(strings.TrimSpace(gjson.Parse(json).String()))
	})

}

// applyModifiers runs each modifier (e.g. "@phone:44") over the value in order.
func applyModifiers(value string, modifiers []string) string {
	json := quoteJSON(value)
	for _, m := range modifiers {
		json = gjson.Get(json, m).Raw
	}
	return gjson.Parse(json).String()
}
