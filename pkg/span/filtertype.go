package span

// FilterType classifies a detected span into a sensitive-data category.
type FilterType string

// Sensitive-data categories recognized by the engine.
const (
	FilterSSN          FilterType = "SSN"
	FilterMRN          FilterType = "MRN"
	FilterCreditCard   FilterType = "CREDIT_CARD"
	FilterAccount      FilterType = "ACCOUNT"
	FilterLicense      FilterType = "LICENSE"
	FilterPassport     FilterType = "PASSPORT"
	FilterIBAN         FilterType = "IBAN"
	FilterHealthPlan   FilterType = "HEALTH_PLAN"
	FilterEmail        FilterType = "EMAIL"
	FilterPhone        FilterType = "PHONE"
	FilterFax          FilterType = "FAX"
	FilterIP           FilterType = "IP"
	FilterURL          FilterType = "URL"
	FilterMACAddress   FilterType = "MAC_ADDRESS"
	FilterBitcoin      FilterType = "BITCOIN"
	FilterVehicle      FilterType = "VEHICLE"
	FilterDevice       FilterType = "DEVICE"
	FilterBiometric    FilterType = "BIOMETRIC"
	FilterDate         FilterType = "DATE"
	FilterZipcode      FilterType = "ZIPCODE"
	FilterAddress      FilterType = "ADDRESS"
	FilterCity         FilterType = "CITY"
	FilterState        FilterType = "STATE"
	FilterCounty       FilterType = "COUNTY"
	FilterAge          FilterType = "AGE"
	FilterRelativeDate FilterType = "RELATIVE_DATE"
	FilterProviderName FilterType = "PROVIDER_NAME"
	FilterName         FilterType = "NAME"
	FilterOccupation   FilterType = "OCCUPATION"
	FilterCustom       FilterType = "CUSTOM"
)

// specificity maps each filter type to a tie-break weight. More structured
// identifiers (SSN, MRN) outrank loosely-bounded entities (NAME, CITY), so
// when two candidate spans are otherwise equal the more specific type wins.
var specificity = map[FilterType]int{
	FilterSSN:          100,
	FilterMRN:          95,
	FilterCreditCard:   90,
	FilterAccount:      85,
	FilterLicense:      85,
	FilterPassport:     85,
	FilterIBAN:         85,
	FilterHealthPlan:   85,
	FilterEmail:        80,
	FilterPhone:        75,
	FilterFax:          75,
	FilterIP:           75,
	FilterURL:          75,
	FilterMACAddress:   75,
	FilterBitcoin:      75,
	FilterVehicle:      70,
	FilterDevice:       70,
	FilterBiometric:    70,
	FilterDate:         60,
	FilterZipcode:      55,
	FilterAddress:      50,
	FilterCity:         45,
	FilterState:        45,
	FilterCounty:       45,
	FilterAge:          40,
	FilterRelativeDate: 40,
	FilterProviderName: 36,
	FilterName:         35,
	FilterOccupation:   30,
	FilterCustom:       20,
}

// Specificity returns the tie-break weight for the filter type.
// Unknown types get a low default so known types always outrank them.
func (ft FilterType) Specificity() int {
	if s, ok := specificity[ft]; ok {
		return s
	}
	return 25
}

// String returns the filter type name.
func (ft FilterType) String() string {
	return string(ft)
}
