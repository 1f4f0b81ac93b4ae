package validate

import (
	"fmt"
	"strings"
)

// Country resolves a country name, alias, ISO2, or ISO3 code to its ISO2
// code. Input is stripped and uppercased before lookup; unresolvable values
// are a validation failure.
func Country(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", fmt.Errorf("must not be empty")
	}
	if iso2, ok := countryAliases[s]; ok {
		return iso2, nil
	}
	return "", fmt.Errorf("%q is not a recognized country", s)
}

// countryAliases maps uppercased country names, common aliases, and ISO2/ISO3
// codes to the canonical ISO2 code. Fixed table; extend as new source data
// shows up with unmapped spellings.
var countryAliases = map[string]string{
	// North America
	"US": "US", "USA": "US", "UNITED STATES": "US", "UNITED STATES OF AMERICA": "US", "AMERICA": "US", "U.S.": "US", "U.S.A.": "US",
	"CA": "CA", "CAN": "CA", "CANADA": "CA",
	"MX": "MX", "MEX": "MX", "MEXICO": "MX",

	// Europe
	"GB": "GB", "GBR": "GB", "UK": "GB", "UNITED KINGDOM": "GB", "GREAT BRITAIN": "GB", "ENGLAND": "GB", "SCOTLAND": "GB", "WALES": "GB",
	"IE": "IE", "IRL": "IE", "IRELAND": "IE",
	"FR": "FR", "FRA": "FR", "FRANCE": "FR",
	"DE": "DE", "DEU": "DE", "GERMANY": "DE",
	"ES": "ES", "ESP": "ES", "SPAIN": "ES",
	"PT": "PT", "PRT": "PT", "PORTUGAL": "PT",
	"IT": "IT", "ITA": "IT", "ITALY": "IT",
	"NL": "NL", "NLD": "NL", "NETHERLANDS": "NL", "HOLLAND": "NL", "THE NETHERLANDS": "NL",
	"BE": "BE", "BEL": "BE", "BELGIUM": "BE",
	"LU": "LU", "LUX": "LU", "LUXEMBOURG": "LU",
	"CH": "CH", "CHE": "CH", "SWITZERLAND": "CH",
	"AT": "AT", "AUT": "AT", "AUSTRIA": "AT",
	"SE": "SE", "SWE": "SE", "SWEDEN": "SE",
	"NO": "NO", "NOR": "NO", "NORWAY": "NO",
	"DK": "DK", "DNK": "DK", "DENMARK": "DK",
	"FI": "FI", "FIN": "FI", "FINLAND": "FI",
	"IS": "IS", "ISL": "IS", "ICELAND": "IS",
	"PL": "PL", "POL": "PL", "POLAND": "PL",
	"CZ": "CZ", "CZE": "CZ", "CZECH REPUBLIC": "CZ", "CZECHIA": "CZ",
	"SK": "SK", "SVK": "SK", "SLOVAKIA": "SK",
	"HU": "HU", "HUN": "HU", "HUNGARY": "HU",
	"RO": "RO", "ROU": "RO", "ROMANIA": "RO",
	"BG": "BG", "BGR": "BG", "BULGARIA": "BG",
	"GR": "GR", "GRC": "GR", "GREECE": "GR",
	"HR": "HR", "HRV": "HR", "CROATIA": "HR",
	"SI": "SI", "SVN": "SI", "SLOVENIA": "SI",
	"EE": "EE", "EST": "EE", "ESTONIA": "EE",
	"LV": "LV", "LVA": "LV", "LATVIA": "LV",
	"LT": "LT", "LTU": "LT", "LITHUANIA": "LT",
	"UA": "UA", "UKR": "UA", "UKRAINE": "UA",

	// Middle East & Africa
	"IL": "IL", "ISR": "IL", "ISRAEL": "IL",
	"TR": "TR", "TUR": "TR", "TURKEY": "TR", "TURKIYE": "TR",
	"AE": "AE", "ARE": "AE", "UNITED ARAB EMIRATES": "AE", "UAE": "AE",
	"SA": "SA", "SAU": "SA", "SAUDI ARABIA": "SA",
	"QA": "QA", "QAT": "QA", "QATAR": "QA",
	"EG": "EG", "EGY": "EG", "EGYPT": "EG",
	"ZA": "ZA", "ZAF": "ZA", "SOUTH AFRICA": "ZA",
	"NG": "NG", "NGA": "NG", "NIGERIA": "NG",
	"KE": "KE", "KEN": "KE", "KENYA": "KE",
	"MA": "MA", "MAR": "MA", "MOROCCO": "MA",

	// Asia-Pacific
	"AU": "AU", "AUS": "AU", "AUSTRALIA": "AU",
	"NZ": "NZ", "NZL": "NZ", "NEW ZEALAND": "NZ",
	"JP": "JP", "JPN": "JP", "JAPAN": "JP",
	"KR": "KR", "KOR": "KR", "SOUTH KOREA": "KR", "KOREA": "KR", "REPUBLIC OF KOREA": "KR",
	"CN": "CN", "CHN": "CN", "CHINA": "CN", "PEOPLE'S REPUBLIC OF CHINA": "CN",
	"HK": "HK", "HKG": "HK", "HONG KONG": "HK",
	"TW": "TW", "TWN": "TW", "TAIWAN": "TW",
	"SG": "SG", "SGP": "SG", "SINGAPORE": "SG",
	"MY": "MY", "MYS": "MY", "MALAYSIA": "MY",
	"TH": "TH", "THA": "TH", "THAILAND": "TH",
	"VN": "VN", "VNM": "VN", "VIETNAM": "VN", "VIET NAM": "VN",
	"PH": "PH", "PHL": "PH", "PHILIPPINES": "PH",
	"ID": "ID", "IDN": "ID", "INDONESIA": "ID",
	"IN": "IN", "IND": "IN", "INDIA": "IN",
	"PK": "PK", "PAK": "PK", "PAKISTAN": "PK",
	"BD": "BD", "BGD": "BD", "BANGLADESH": "BD",

	// South & Central America
	"BR": "BR", "BRA": "BR", "BRAZIL": "BR", "BRASIL": "BR",
	"AR": "AR", "ARG": "AR", "ARGENTINA": "AR",
	"CL": "CL", "CHL": "CL", "CHILE": "CL",
	"CO": "CO", "COL": "CO", "COLOMBIA": "CO",
	"PE": "PE", "PER": "PE", "PERU": "PE",
	"UY": "UY", "URY": "UY", "URUGUAY": "UY",
	"EC": "EC", "ECU": "EC", "ECUADOR": "EC",
	"CR": "CR", "CRI": "CR", "COSTA RICA": "CR",
	"PA": "PA", "PAN": "PA", "PANAMA": "PA",

	// Other commonly seen
	"RU": "RU", "RUS": "RU", "RUSSIA": "RU", "RUSSIAN FEDERATION": "RU",
}
